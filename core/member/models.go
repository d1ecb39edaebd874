package member

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"golang.org/x/crypto/bcrypt"

	"github.com/adamsassn/membership/core"
)

// Roles
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RoleIntern  Role = "intern"
	RoleDoctor  Role = "doctor"
)

var AllRoles = []Role{RoleAdmin, RoleStudent, RoleIntern, RoleDoctor}

func ParseRole(s string) (Role, error) {
	role := Role(core.CleanString(s, true /* lower */))
	for _, r := range AllRoles {
		if role == r {
			return role, nil
		}
	}
	return "", ErrInvalidRole
}

// Membership application statuses
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected}

func ParseStatus(s string) (Status, error) {
	status := Status(core.CleanString(s, true /* lower */))
	for _, st := range AllStatuses {
		if status == st {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

// Membership categories
type Category string

const (
	CategoryStudent       Category = "Student"
	CategoryGraduate      Category = "Graduate/Trying FMGE"
	CategoryFMGEPassed    Category = "FMGE passed"
	CategoryWorkingDoctor Category = "Working Doctor"
	CategoryPGDoctor      Category = "PG Doctor"
)

var AllCategories = []Category{
	CategoryStudent,
	CategoryGraduate,
	CategoryFMGEPassed,
	CategoryWorkingDoctor,
	CategoryPGDoctor,
}

func ParseCategory(s string) (Category, error) {
	category := Category(core.CleanString(s))
	for _, c := range AllCategories {
		if category == c {
			return category, nil
		}
	}
	return "", ErrInvalidCategory
}

var (
	Genders = []string{"Male", "Female", "Other"}

	BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-", "Bombay Group"}

	EducationalStatuses = []string{
		"Student (@Abroad University)",
		"Graduated / FMGE Aspirant",
		"FMGE Passed Candidate",
		"Internship",
		"Working Doctor",
		"Post Graduation ongoing",
		"Post Graduation Completed, Working",
	}
)

type Member struct {
	ID                   string    `json:"id"`
	Username             string    `json:"username"`
	Email                string    `json:"email"`
	PasswordHash         []byte    `json:"-"`
	FullName             string    `json:"full_name"`
	Gender               string    `json:"gender"`
	WhatsappNumber       string    `json:"whatsapp_number"`
	MobileNumber         string    `json:"mobile_number"`
	CommunicationAddress string    `json:"address_communication"`
	PermanentAddress     string    `json:"address_permanent"`
	District             string    `json:"district"`
	FatherSpouseDetails  string    `json:"father_spouse_details"`
	BloodGroup           string    `json:"blood_group"`
	Role                 Role      `json:"role"`
	EducationalStatus    string    `json:"educational_status"`
	Category             Category  `json:"category"`
	UniversityName       string    `json:"university_name"`
	CountryOfUniversity  string    `json:"country_university"`
	YearOfJoining        string    `json:"year_of_joining"`
	YearOfCompletion     string    `json:"year_of_completion"`
	PhotoKey             string    `json:"photo"`
	StateNMCKey          string    `json:"state_nmc,omitempty"`
	PassportKey          string    `json:"passport"`
	QualificationKey     string    `json:"medical_qualification"`
	PaymentProofKey      string    `json:"payment_transaction_proof"`
	DateTimeOfPayment    string    `json:"date_time_of_payment"`
	WillingToBeDonor     bool      `json:"willing_to_be_donor"`
	Agreement            bool      `json:"agreement"`
	MID                  string    `json:"mid,omitempty"`
	Application          bool      `json:"application"`
	Status               Status    `json:"status"`
	AdminRemarks         string    `json:"admin_remarks,omitempty"`
	CreatedAt            time.Time `json:"created_at"` // UTC
	UpdatedAt            time.Time `json:"updated_at"` // UTC
	LastLogin            time.Time `json:"last_login"` // UTC
}

func (m *Member) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return nil
}

func (m *Member) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(m.PasswordHash, []byte(pwd))
}

func (m *Member) IsAdmin() bool    { return m.Role == RoleAdmin }
func (m *Member) IsApproved() bool { return m.Status == StatusApproved }

// DocumentKeys returns the object storage keys of all documents attached to the member.
func (m *Member) DocumentKeys() []string {
	keys := make([]string, 0, 5)
	for _, key := range []string{m.PhotoKey, m.StateNMCKey, m.PassportKey, m.QualificationKey, m.PaymentProofKey} {
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// DocumentFile is an uploaded document pending storage.
type DocumentFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Documents holds the files uploaded along a registration or a profile update.
// StateNMC is only required for registered doctors.
type Documents struct {
	Photo         *DocumentFile
	StateNMC      *DocumentFile
	Passport      *DocumentFile
	Qualification *DocumentFile
	PaymentProof  *DocumentFile
}

type documentField struct {
	name     string
	file     *DocumentFile
	required bool
}

func (d Documents) fields() []documentField {
	return []documentField{
		{name: "photo", file: d.Photo, required: true},
		{name: "state_nmc", file: d.StateNMC, required: false},
		{name: "passport", file: d.Passport, required: true},
		{name: "medical_qualification", file: d.Qualification, required: true},
		{name: "payment_transaction_proof", file: d.PaymentProof, required: true},
	}
}

// NewMember contains information needed to register a new Member.
type NewMember struct {
	Username             string `json:"username" form:"username" validate:"required,min=6,alphanum_"`
	Email                string `json:"email" form:"email" validate:"required,email"`
	Password             string `json:"password" form:"password" validate:"required"`
	PasswordConfirm      string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
	FullName             string `json:"full_name" form:"full_name" validate:"required"`
	Gender               string `json:"gender" form:"gender" validate:"required,gender_"`
	WhatsappNumber       string `json:"whatsapp_number" form:"whatsapp_number" validate:"required,phone_"`
	MobileNumber         string `json:"mobile_number" form:"mobile_number" validate:"required,phone_"`
	CommunicationAddress string `json:"address_communication" form:"address_communication" validate:"required"`
	PermanentAddress     string `json:"address_permanent" form:"address_permanent" validate:"required"`
	District             string `json:"district" form:"district" validate:"required"`
	FatherSpouseDetails  string `json:"father_spouse_details" form:"father_spouse_details" validate:"required"`
	BloodGroup           string `json:"blood_group" form:"blood_group" validate:"required,bloodgroup_"`
	EducationalStatus    string `json:"educational_status" form:"educational_status" validate:"required,edustatus_"`
	Category             string `json:"category" form:"category" validate:"required,category_"`
	UniversityName       string `json:"university_name" form:"university_name" validate:"required"`
	CountryOfUniversity  string `json:"country_university" form:"country_university" validate:"required"`
	YearOfJoining        string `json:"year_of_joining" form:"year_of_joining" validate:"required,len=4,numeric"`
	YearOfCompletion     string `json:"year_of_completion" form:"year_of_completion" validate:"required,len=4,numeric"`
	DateTimeOfPayment    string `json:"date_time_of_payment" form:"date_time_of_payment" validate:"required"`
	WillingToBeDonor     bool   `json:"willing_to_be_donor" form:"willing_to_be_donor"`
	Agreement            bool   `json:"agreement" form:"agreement" validate:"required,eq=true"`
	MID                  string `json:"mid" form:"mid"`
	Application          bool   `json:"application" form:"application" validate:"required,eq=true"`
}

func (nm *NewMember) Validate(validate *validator.Validate, svc Service) error {
	nm.Username = core.CleanString(nm.Username, true /* lower */)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.FullName = core.CleanString(nm.FullName)
	nm.WhatsappNumber = core.CleanString(nm.WhatsappNumber)
	nm.MobileNumber = core.CleanString(nm.MobileNumber)
	nm.District = core.CleanString(nm.District)
	nm.UniversityName = core.CleanString(nm.UniversityName)
	nm.CountryOfUniversity = core.CleanString(nm.CountryOfUniversity)
	nm.MID = core.CleanString(nm.MID)

	if err := validate.Struct(nm); err != nil {
		return err
	}
	return svc.CheckUniqueness(nm.Username, nm.Email, nm.WhatsappNumber, nm.MobileNumber)
}

// UpdateMember defines what information a member may modify on their own profile.
// Admins may additionally change Role, Status and AdminRemarks through dedicated operations.
type UpdateMember struct {
	Email                string `json:"email" form:"email" validate:"omitempty,email"`
	FullName             string `json:"full_name" form:"full_name"`
	Gender               string `json:"gender" form:"gender" validate:"omitempty,gender_"`
	WhatsappNumber       string `json:"whatsapp_number" form:"whatsapp_number" validate:"omitempty,phone_"`
	MobileNumber         string `json:"mobile_number" form:"mobile_number" validate:"omitempty,phone_"`
	CommunicationAddress string `json:"address_communication" form:"address_communication"`
	PermanentAddress     string `json:"address_permanent" form:"address_permanent"`
	District             string `json:"district" form:"district"`
	FatherSpouseDetails  string `json:"father_spouse_details" form:"father_spouse_details"`
	BloodGroup           string `json:"blood_group" form:"blood_group" validate:"omitempty,bloodgroup_"`
	EducationalStatus    string `json:"educational_status" form:"educational_status" validate:"omitempty,edustatus_"`
	UniversityName       string `json:"university_name" form:"university_name"`
	CountryOfUniversity  string `json:"country_university" form:"country_university"`
	YearOfJoining        string `json:"year_of_joining" form:"year_of_joining" validate:"omitempty,len=4,numeric"`
	YearOfCompletion     string `json:"year_of_completion" form:"year_of_completion" validate:"omitempty,len=4,numeric"`
	WillingToBeDonor     *bool  `json:"willing_to_be_donor" form:"willing_to_be_donor"`
	MID                  string `json:"mid" form:"mid"`
	Password             string `json:"password" form:"password" validate:"omitempty"`
	PasswordConfirm      string `json:"password_confirm" form:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (um *UpdateMember) Validate(orig Member, validate *validator.Validate, svc Service) error {
	if email := core.CleanString(um.Email, true /* lower */); email != "" {
		um.Email = email
	} else {
		um.Email = orig.Email
	}
	um.FullName = core.CleanString(um.FullName)
	um.WhatsappNumber = core.CleanString(um.WhatsappNumber)
	um.MobileNumber = core.CleanString(um.MobileNumber)
	if um.WhatsappNumber == "" {
		um.WhatsappNumber = orig.WhatsappNumber
	}
	if um.MobileNumber == "" {
		um.MobileNumber = orig.MobileNumber
	}

	if err := validate.Struct(um); err != nil {
		return err
	}
	return svc.CheckUniqueness(orig.Username, um.Email, um.WhatsappNumber, um.MobileNumber, orig)
}

type ResetMemberPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetMemberPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single Member; the first set field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string
}

// QueryFilter narrows down Member list results; fields combine with AND.
type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	Status      string    `query:"status"`
	Category    string    `query:"category"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.Status == "" && qf.Category == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Category = core.CleanString(qf.Category)
}
