package member

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/mail"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
)

var (
	// errors
	ErrNotFound              = errors.New("member not found")
	ErrUsernameExists        = errors.New("a member with this username already exists")
	ErrEmailExists           = errors.New("a member with this email already exists")
	ErrWhatsappNumberExists  = errors.New("a member with this WhatsApp number already exists")
	ErrMobileNumberExists    = errors.New("a member with this mobile number already exists")
	ErrInvalidRole           = errors.New("invalid role")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidCategory       = errors.New("invalid category")
	ErrApplicationPending    = errors.New("your membership application is still pending approval")
	ErrApplicationRejected   = errors.New("your membership application has been rejected")
	ErrOTPMismatch           = errors.New("invalid verification code")
	ErrOTPExpired            = errors.New("verification code has expired")
	ErrOTPNotFound           = errors.New("no verification code issued")
	ErrRequestNotFound       = errors.New("category change request not found")
	ErrPendingRequestExists  = errors.New("you already have a pending category change request")
	ErrRequestAlreadyDecided = errors.New("this category change request has already been decided")
)

type (
	// Repository persists members.
	Repository interface {
		CheckUniqueness(ctx context.Context, username, email, whatsapp, mobile string, excluded ...Member) error
		CreateMember(ctx context.Context, mbr Member) (Member, error)
		GetMember(ctx context.Context, filter GetFilter) (Member, error)
		// QueryMembers applies AND on the QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on FullName, Username or Email.
		QueryMembers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Member, error)
		UpdateMember(ctx context.Context, mbr Member) (Member, error)
		UpdateOrCreateMember(ctx context.Context, mbr Member) (Member, error)
		DeleteMembersByID(ctx context.Context, ids ...string) error
	}

	// OTPRepository persists login verification codes, one per member.
	OTPRepository interface {
		UpsertOTP(ctx context.Context, otp OTP) (OTP, error)
		GetOTP(ctx context.Context, memberID string) (OTP, error)
		DeleteOTP(ctx context.Context, memberID string) error
	}

	// CategoryRequestRepository persists category change requests.
	CategoryRequestRepository interface {
		CreateCategoryRequest(ctx context.Context, req CategoryChangeRequest) (CategoryChangeRequest, error)
		GetCategoryRequest(ctx context.Context, id string) (CategoryChangeRequest, error)
		GetPendingCategoryRequest(ctx context.Context, memberID string) (CategoryChangeRequest, error)
		QueryCategoryRequests(ctx context.Context, filter *CategoryRequestFilter, ordering []core.DBOrdering) ([]CategoryChangeRequest, error)
		UpdateCategoryRequest(ctx context.Context, req CategoryChangeRequest) (CategoryChangeRequest, error)
	}

	Service interface {
		Register(ctx context.Context, nm NewMember, docs Documents) (Member, error)
		GetByID(ctx context.Context, id string) (Member, error)
		GetByEmail(ctx context.Context, email string) (Member, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (Member, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Member, error)
		Update(ctx context.Context, orig Member, um UpdateMember, docs Documents) (Member, error)
		Delete(ctx context.Context, ids ...string) error
		CheckUniqueness(username, email, whatsapp, mobile string, excluded ...Member) error

		Authenticate(ctx context.Context, uname, pwd string) (Member, error)
		SetLastLogin(ctx context.Context, mbr Member) (Member, error)
		IssueOTP(ctx context.Context, mbr Member) error
		VerifyOTP(ctx context.Context, mbr Member, code string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetMemberPassword) error

		SetStatus(ctx context.Context, id string, status Status, remarks string) (Member, error)

		RequestCategoryChange(ctx context.Context, mbr Member, ncr NewCategoryRequest) (CategoryChangeRequest, error)
		PendingCategoryRequest(ctx context.Context, memberID string) (CategoryChangeRequest, error)
		QueryCategoryRequests(ctx context.Context, filter *CategoryRequestFilter, ordering []core.DBOrdering) ([]CategoryChangeRequest, error)
		DecideCategoryRequest(ctx context.Context, id string, approve bool, remarks string) (CategoryChangeRequest, error)

		ExportCategoryMembers(ctx context.Context, category Category) ([]byte, error)
		RegistrationsReport(ctx context.Context, period string, from, to time.Time) ([]byte, error)

		DocumentURL(ctx context.Context, key string) (string, error)
	}

	service struct {
		repo       Repository
		otpRepo    OTPRepository
		catRepo    CategoryRequestRepository
		mailSvc    core.EmailService
		storageSvc core.ObjectStorage
		logger     core.Logger
		conf       *core.Config

		otpGenFunc func() (string, error) // swapped out in tests
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	otpRepo OTPRepository,
	catRepo CategoryRequestRepository,
	mailSvc core.EmailService,
	storageSvc core.ObjectStorage,
	logger core.Logger,
	conf *core.Config,
) Service {
	secretKey = conf.SecretKey
	passwordResetTimeoutDelta = conf.Server.PasswordResetTimeoutDelta
	return &service{
		repo:       repo,
		otpRepo:    otpRepo,
		catRepo:    catRepo,
		mailSvc:    mailSvc,
		storageSvc: storageSvc,
		logger:     logger,
		conf:       conf,
		otpGenFunc: GenerateOTPCode,
	}
}

func (svc *service) CheckUniqueness(username, email, whatsapp, mobile string, excluded ...Member) error {
	if err := svc.repo.CheckUniqueness(context.Background(), username, email, whatsapp, mobile, excluded...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		case ErrWhatsappNumberExists:
			field = "whatsapp_number"
		case ErrMobileNumberExists:
			field = "mobile_number"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// documentKey builds the object storage key for a member's uploaded document.
func documentKey(username, field, filename string) string {
	return path.Join("users", username, field, filename)
}

// uploadDocuments stores all provided files and sets the resulting keys on the member.
// An upload failure surfaces as a field error on the offending document;
// files already stored are not rolled back.
func (svc *service) uploadDocuments(ctx context.Context, mbr *Member, docs Documents, requireAll bool) error {
	for _, fld := range docs.fields() {
		if fld.file == nil {
			if requireAll && fld.required {
				return core.NewValidationError(nil, core.FieldError{Field: fld.name, Error: "this file is required"})
			}
			continue
		}

		key := documentKey(mbr.Username, fld.name, fld.file.Filename)
		if err := svc.storageSvc.Upload(ctx, key, fld.file.Content, fld.file.Size, fld.file.ContentType); err != nil {
			svc.logger.Error(fmt.Sprintf("uploading %s for %s: %v", fld.name, mbr.Username, err), err)
			return core.NewValidationError(err, core.FieldError{Field: fld.name, Error: "failed to store uploaded file"})
		}
		svc.setDocumentKey(ctx, mbr, fld.name, key)
	}
	return nil
}

// setDocumentKey records the new key, removing the replaced object if any.
func (svc *service) setDocumentKey(ctx context.Context, mbr *Member, field, key string) {
	replace := func(old *string) {
		if *old != "" && *old != key {
			if err := svc.storageSvc.Delete(ctx, *old); err != nil {
				svc.logger.Warn(fmt.Sprintf("deleting replaced object %s: %v", *old, err))
			}
		}
		*old = key
	}
	switch field {
	case "photo":
		replace(&mbr.PhotoKey)
	case "state_nmc":
		replace(&mbr.StateNMCKey)
	case "passport":
		replace(&mbr.PassportKey)
	case "medical_qualification":
		replace(&mbr.QualificationKey)
	case "payment_transaction_proof":
		replace(&mbr.PaymentProofKey)
	}
}

// roleFor derives the member role from their membership details.
func roleFor(category Category, eduStatus string) Role {
	switch category {
	case CategoryWorkingDoctor, CategoryPGDoctor, CategoryFMGEPassed:
		return RoleDoctor
	}
	if eduStatus == "Internship" {
		return RoleIntern
	}
	return RoleStudent
}

func (svc *service) Register(ctx context.Context, nm NewMember, docs Documents) (Member, error) {
	now := time.Now().UTC()
	mbr := Member{
		Username:             nm.Username,
		Email:                nm.Email,
		FullName:             nm.FullName,
		Gender:               nm.Gender,
		WhatsappNumber:       nm.WhatsappNumber,
		MobileNumber:         nm.MobileNumber,
		CommunicationAddress: nm.CommunicationAddress,
		PermanentAddress:     nm.PermanentAddress,
		District:             nm.District,
		FatherSpouseDetails:  nm.FatherSpouseDetails,
		BloodGroup:           nm.BloodGroup,
		Role:                 roleFor(Category(nm.Category), nm.EducationalStatus),
		EducationalStatus:    nm.EducationalStatus,
		Category:             Category(nm.Category),
		UniversityName:       nm.UniversityName,
		CountryOfUniversity:  nm.CountryOfUniversity,
		YearOfJoining:        nm.YearOfJoining,
		YearOfCompletion:     nm.YearOfCompletion,
		DateTimeOfPayment:    nm.DateTimeOfPayment,
		WillingToBeDonor:     nm.WillingToBeDonor,
		Agreement:            nm.Agreement,
		MID:                  nm.MID,
		Application:          nm.Application,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := mbr.SetPassword(nm.Password); err != nil {
		return Member{}, errors.Wrap(err, "hashing password")
	}

	// the member row is only created once all mandatory uploads succeeded
	if err := svc.uploadDocuments(ctx, &mbr, docs, true /* requireAll */); err != nil {
		return Member{}, err
	}

	mbr, err := svc.repo.CreateMember(ctx, mbr)
	if err != nil {
		return Member{}, errors.Wrap(err, "creating member")
	}

	svc.sendWelcomeMail(mbr)
	return mbr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMember(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Member, error) {
	return svc.repo.GetMember(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (Member, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetMember(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, orig Member, um UpdateMember, docs Documents) (Member, error) {
	mbr := orig
	mbr.Email = um.Email
	mbr.WhatsappNumber = um.WhatsappNumber
	mbr.MobileNumber = um.MobileNumber
	if um.FullName != "" {
		mbr.FullName = um.FullName
	}
	if um.Gender != "" {
		mbr.Gender = um.Gender
	}
	if um.CommunicationAddress != "" {
		mbr.CommunicationAddress = um.CommunicationAddress
	}
	if um.PermanentAddress != "" {
		mbr.PermanentAddress = um.PermanentAddress
	}
	if um.District != "" {
		mbr.District = um.District
	}
	if um.FatherSpouseDetails != "" {
		mbr.FatherSpouseDetails = um.FatherSpouseDetails
	}
	if um.BloodGroup != "" {
		mbr.BloodGroup = um.BloodGroup
	}
	if um.EducationalStatus != "" {
		mbr.EducationalStatus = um.EducationalStatus
	}
	if um.UniversityName != "" {
		mbr.UniversityName = um.UniversityName
	}
	if um.CountryOfUniversity != "" {
		mbr.CountryOfUniversity = um.CountryOfUniversity
	}
	if um.YearOfJoining != "" {
		mbr.YearOfJoining = um.YearOfJoining
	}
	if um.YearOfCompletion != "" {
		mbr.YearOfCompletion = um.YearOfCompletion
	}
	if um.WillingToBeDonor != nil {
		mbr.WillingToBeDonor = *um.WillingToBeDonor
	}
	if um.MID != "" {
		mbr.MID = um.MID
	}
	if um.Password != "" {
		if err := mbr.SetPassword(um.Password); err != nil {
			return Member{}, errors.Wrap(err, "hashing password")
		}
	}
	mbr.UpdatedAt = time.Now().UTC()

	if err := svc.uploadDocuments(ctx, &mbr, docs, false /* requireAll */); err != nil {
		return Member{}, err
	}

	mbr, err := svc.repo.UpdateMember(ctx, mbr)
	if err != nil {
		return Member{}, errors.Wrap(err, "updating member")
	}

	svc.sendProfileUpdatedMail(mbr)
	return mbr, nil
}

// Delete removes members along with their stored documents.
// Storage failures are logged and do not abort the deletion.
func (svc *service) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		mbr, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				continue
			}
			return errors.Wrap(err, "finding member")
		}
		for _, key := range mbr.DocumentKeys() {
			if err := svc.storageSvc.Delete(ctx, key); err != nil {
				svc.logger.Warn(fmt.Sprintf("deleting object %s: %v", key, err))
			}
		}
	}
	return svc.repo.DeleteMembersByID(ctx, ids...)
}

func (svc *service) Authenticate(ctx context.Context, uname, pwd string) (Member, error) {
	mbr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Member{}, ErrNotFound
		}
		return Member{}, errors.Wrap(err, "finding member by username or email")
	}
	if err = mbr.CheckPassword(pwd); err != nil {
		return Member{}, ErrNotFound
	}
	switch mbr.Status {
	case StatusPending:
		return Member{}, ErrApplicationPending
	case StatusRejected:
		return Member{}, ErrApplicationRejected
	}
	return mbr, nil
}

func (svc *service) SetLastLogin(ctx context.Context, mbr Member) (Member, error) {
	mbr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateMember(ctx, mbr)
}

func (svc *service) IssueOTP(ctx context.Context, mbr Member) error {
	code, err := svc.otpGenFunc()
	if err != nil {
		return errors.Wrap(err, "generating verification code")
	}
	if _, err = svc.otpRepo.UpsertOTP(ctx, OTP{
		MemberID:  mbr.ID,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return errors.Wrap(err, "saving verification code")
	}
	svc.sendOTPMail(mbr, code)
	return nil
}

func (svc *service) VerifyOTP(ctx context.Context, mbr Member, code string) error {
	otp, err := svc.otpRepo.GetOTP(ctx, mbr.ID)
	if err != nil {
		if errors.Cause(err) == ErrOTPNotFound {
			return ErrOTPMismatch
		}
		return errors.Wrap(err, "finding verification code")
	}
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) == 0 {
		return ErrOTPMismatch
	}
	if delta := svc.conf.Server.OTPExpirationDelta; delta > 0 {
		if time.Now().UTC().Sub(otp.CreatedAt) > delta {
			return ErrOTPExpired
		}
	}
	if err = svc.otpRepo.DeleteOTP(ctx, mbr.ID); err != nil {
		return errors.Wrap(err, "discarding verification code")
	}
	return nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	mbr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(mbr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetMemberPassword) error {
	invalidUID := core.NewValidationError(nil, core.FieldError{Field: "uid", Error: "invalid value"})
	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalidUID
	}
	mbr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidUID
		}
		return errors.Wrap(err, "finding member by ID")
	}
	if err = verifyToken(mbr, rp.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: "invalid value"})
	}
	if err = mbr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	mbr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateMember(ctx, mbr); err != nil {
		return errors.Wrap(err, "updating member")
	}
	return nil
}

// SetStatus decides a membership application. A decision can be revised
// later (approved members may still be rejected and vice versa); every
// transition records the admin remarks and emails the member.
// The outcome email is best effort; a delivery failure never fails the decision.
func (svc *service) SetStatus(ctx context.Context, id string, status Status, remarks string) (Member, error) {
	if status != StatusApproved && status != StatusRejected {
		return Member{}, ErrInvalidStatus
	}
	mbr, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
	if err != nil {
		return Member{}, err
	}

	mbr.Status = status
	mbr.AdminRemarks = remarks
	mbr.UpdatedAt = time.Now().UTC()
	mbr, err = svc.repo.UpdateMember(ctx, mbr)
	if err != nil {
		return Member{}, errors.Wrap(err, "updating member")
	}

	svc.sendStatusMail(mbr)
	return mbr, nil
}

func (svc *service) RequestCategoryChange(ctx context.Context, mbr Member, ncr NewCategoryRequest) (CategoryChangeRequest, error) {
	if _, err := svc.catRepo.GetPendingCategoryRequest(ctx, mbr.ID); err == nil {
		return CategoryChangeRequest{}, core.NewValidationError(
			ErrPendingRequestExists,
			core.FieldError{Field: "requested_category", Error: ErrPendingRequestExists.Error()},
		)
	} else if errors.Cause(err) != ErrRequestNotFound {
		return CategoryChangeRequest{}, errors.Wrap(err, "checking pending request")
	}

	requested := Category(ncr.RequestedCategory)
	if requested == mbr.Category {
		return CategoryChangeRequest{}, core.NewValidationError(
			nil, core.FieldError{Field: "requested_category", Error: "you already belong to this category"})
	}

	req := CategoryChangeRequest{
		MemberID:          mbr.ID,
		CurrentCategory:   mbr.Category,
		RequestedCategory: requested,
		Status:            StatusPending,
		RequestedAt:       time.Now().UTC(),
	}
	req, err := svc.catRepo.CreateCategoryRequest(ctx, req)
	if err != nil {
		return CategoryChangeRequest{}, errors.Wrap(err, "creating category request")
	}
	return req, nil
}

func (svc *service) PendingCategoryRequest(ctx context.Context, memberID string) (CategoryChangeRequest, error) {
	return svc.catRepo.GetPendingCategoryRequest(ctx, memberID)
}

func (svc *service) QueryCategoryRequests(ctx context.Context, filter *CategoryRequestFilter, ordering []core.DBOrdering) ([]CategoryChangeRequest, error) {
	return svc.catRepo.QueryCategoryRequests(ctx, filter, ordering)
}

// DecideCategoryRequest approves or rejects a pending request.
// Approval copies the requested category onto the member.
func (svc *service) DecideCategoryRequest(ctx context.Context, id string, approve bool, remarks string) (CategoryChangeRequest, error) {
	req, err := svc.catRepo.GetCategoryRequest(ctx, id)
	if err != nil {
		return CategoryChangeRequest{}, err
	}
	if !req.IsPending() {
		return CategoryChangeRequest{}, ErrRequestAlreadyDecided
	}

	mbr, err := svc.repo.GetMember(ctx, GetFilter{ID: req.MemberID})
	if err != nil {
		return CategoryChangeRequest{}, errors.Wrap(err, "finding member")
	}

	if approve {
		req.Status = StatusApproved
		mbr.Category = req.RequestedCategory
		mbr.Role = roleFor(mbr.Category, mbr.EducationalStatus)
		mbr.UpdatedAt = time.Now().UTC()
		if _, err = svc.repo.UpdateMember(ctx, mbr); err != nil {
			return CategoryChangeRequest{}, errors.Wrap(err, "updating member category")
		}
	} else {
		req.Status = StatusRejected
	}
	req.AdminRemarks = remarks
	req.DecidedAt = time.Now().UTC()

	req, err = svc.catRepo.UpdateCategoryRequest(ctx, req)
	if err != nil {
		return CategoryChangeRequest{}, errors.Wrap(err, "updating category request")
	}

	svc.sendCategoryDecisionMail(mbr, req)
	return req, nil
}

func (svc *service) DocumentURL(ctx context.Context, key string) (string, error) {
	return svc.storageSvc.PresignedURL(ctx, key, svc.conf.Storage.PresignExpiry)
}

// Mail

func (svc *service) sendWelcomeMail(mbr Member) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: mbr.FullName, Address: mbr.Email}},
		Subject:      "Welcome! Your membership application was received",
		TemplateName: "welcome",
		TemplateData: mbr,
	})
}

func (svc *service) sendOTPMail(mbr Member, code string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: mbr.FullName, Address: mbr.Email}},
		Subject:      "Your login verification code",
		TemplateName: "otp",
		TemplateData: struct {
			Member Member
			Code   string
		}{mbr, code},
	})
}

func (svc *service) sendStatusMail(mbr Member) {
	tmpl := "account-approved"
	subject := "Your membership has been approved"
	if mbr.Status == StatusRejected {
		tmpl = "account-rejected"
		subject = "Update on your membership application"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: mbr.FullName, Address: mbr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: mbr,
	})
}

func (svc *service) sendProfileUpdatedMail(mbr Member) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: mbr.FullName, Address: mbr.Email}},
		Subject:      "Your profile has been updated",
		TemplateName: "profile-updated",
		TemplateData: mbr,
	})
}

func (svc *service) sendCategoryDecisionMail(mbr Member, req CategoryChangeRequest) {
	subject := "Your category change request has been approved"
	if req.Status == StatusRejected {
		subject = "Update on your category change request"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: mbr.FullName, Address: mbr.Email}},
		Subject:      subject,
		TemplateName: "category-decision",
		TemplateData: struct {
			Member  Member
			Request CategoryChangeRequest
		}{mbr, req},
	})
}

func (svc *service) sendPasswordResetMail(mbr Member) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: mbr.FullName, Address: mbr.Email}},
		Subject:      "Password reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Member Member
			UID    string
			Token  string
		}{mbr, EncodeUID(mbr), MakeToken(mbr)},
	})
}
