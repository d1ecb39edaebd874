package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/member"
)

type memberApi struct {
	svc      member.Service
	validate *validator.Validate
}

func registerMemberAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc member.Service, validate *validator.Validate) {
	api := memberApi{
		svc:      svc,
		validate: validate,
	}

	mg := g.Group("/members")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	mg.POST("/register", api.register)
	mg.POST("/login", api.login)
	mg.POST("/password-reset", api.resetPassword)
	mg.POST("/password-reset-confirm", api.confirmPasswordReset)

	// OTP endpoints; a pending token is enough
	ag := mg.Group("", jwt)
	ag.POST("/verify-otp", api.verifyOTP)
	ag.POST("/resend-otp", api.resendOTP)

	// fully authed endpoints
	fg := ag.Group("", fullTokenMiddleware())
	fg.POST("/token-refresh", api.refreshToken)
	fg.GET("/me", api.retrieveSelf)
	fg.PUT("/me", api.updateSelf)
	fg.POST("/me/category-request", api.requestCategoryChange)
	fg.GET("/me/category-request", api.pendingCategoryRequest)

	// admin endpoints
	fg.GET("", api.query, adminMiddleware())
	fg.DELETE("", api.destroyMultiple, adminMiddleware())
	fg.GET("/export", api.exportCategory, adminMiddleware())
	fg.GET("/reports/registrations", api.registrationsReport, adminMiddleware())
	fg.GET("/category-requests", api.queryCategoryRequests, adminMiddleware())
	fg.PUT("/category-requests/:id", api.decideCategoryRequest, adminMiddleware())

	// admin detail endpoints
	dg := fg.Group("/:id", adminMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("/status", api.setStatus)
	dg.DELETE("", api.destroy)
	dg.GET("/documents/:field", api.documentURL)
}

// formDocument extracts an uploaded file from the multipart form.
// A missing file is not an error; required documents are enforced by the service.
func formDocument(ctx echo.Context, name string) (*member.DocumentFile, error) {
	fh, err := ctx.FormFile(name)
	if err != nil {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening uploaded file %s", name)
	}
	return &member.DocumentFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     f,
	}, nil
}

func formDocuments(ctx echo.Context) (member.Documents, error) {
	var docs member.Documents
	var err error
	if docs.Photo, err = formDocument(ctx, "photo"); err != nil {
		return docs, err
	}
	if docs.StateNMC, err = formDocument(ctx, "state_nmc"); err != nil {
		return docs, err
	}
	if docs.Passport, err = formDocument(ctx, "passport"); err != nil {
		return docs, err
	}
	if docs.Qualification, err = formDocument(ctx, "medical_qualification"); err != nil {
		return docs, err
	}
	if docs.PaymentProof, err = formDocument(ctx, "payment_transaction_proof"); err != nil {
		return docs, err
	}
	return docs, nil
}

// Handlers

func (api *memberApi) register(ctx echo.Context) error {
	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	docs, err := formDocuments(ctx)
	if err != nil {
		return err
	}

	mbr, err := api.svc.Register(ctx.Request().Context(), data, docs)
	if err != nil {
		return errors.Wrap(err, "registering member")
	}

	return ctx.JSON(http.StatusCreated, mbr)
}

func (api *memberApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mbr, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		if errors.Cause(err) == member.ErrNotFound {
			return core.NewValidationError(errors.New("invalid credentials"))
		}
		return errors.Wrap(err, "authenticating")
	}

	if err = api.svc.IssueOTP(ctx.Request().Context(), mbr); err != nil {
		return errors.Wrap(err, "issuing verification code")
	}
	token, err := GenerateToken(GetPendingClaims(mbr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, OTPPendingResponse{
		Token:   token,
		Detail:  "A verification code has been sent to your email address.",
		Pending: true,
	})
}

func (api *memberApi) verifyOTP(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.PendingOTP {
		return core.NewValidationError(errors.New("no verification pending"))
	}

	var data VerifyOTPRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mbr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding member by ID")
	}
	if err = api.svc.VerifyOTP(ctx.Request().Context(), mbr, data.Code); err != nil {
		return err
	}
	if mbr, err = api.svc.SetLastLogin(ctx.Request().Context(), mbr); err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}

	token, err := GenerateToken(GetMemberClaims(mbr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *memberApi) resendOTP(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.PendingOTP {
		return core.NewValidationError(errors.New("no verification pending"))
	}

	mbr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding member by ID")
	}
	if err = api.svc.IssueOTP(ctx.Request().Context(), mbr); err != nil {
		return errors.Wrap(err, "issuing verification code")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "A new verification code has been sent to your email address."})
}

func (api *memberApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == member.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *memberApi) confirmPasswordReset(ctx echo.Context) error {
	var data member.ResetMemberPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetMemberPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *memberApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *memberApi) retrieveSelf(ctx echo.Context) error {
	mbr, err := getContextMember(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) updateSelf(ctx echo.Context) error {
	mbr, err := getContextMember(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}

	var data member.UpdateMember
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}
	if err = data.Validate(mbr, api.validate, api.svc); err != nil {
		return err
	}

	docs, err := formDocuments(ctx)
	if err != nil {
		return err
	}

	mbr, err = api.svc.Update(ctx.Request().Context(), mbr, data, docs)
	if err != nil {
		return errors.Wrap(err, "updating member")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) requestCategoryChange(ctx echo.Context) error {
	mbr, err := getContextMember(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}

	var data member.NewCategoryRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategoryRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.RequestCategoryChange(ctx.Request().Context(), mbr, data)
	if err != nil {
		return errors.Wrap(err, "requesting category change")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *memberApi) pendingCategoryRequest(ctx echo.Context) error {
	mbr, err := getContextMember(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}

	req, err := api.svc.PendingCategoryRequest(ctx.Request().Context(), mbr.ID)
	if err != nil {
		return errors.Wrap(err, "finding pending category request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *memberApi) query(ctx echo.Context) error {
	filter := new(member.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []member.Member{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	members, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []member.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	mbr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == member.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding member by ID")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *memberApi) setStatus(ctx echo.Context) error {
	var data SetStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetStatusRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	status, err := member.ParseStatus(data.Status)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "status", Error: err.Error()})
	}

	if _, err = api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), status, data.AdminRemarks); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *memberApi) destroy(ctx echo.Context) error {
	// Say No to Suicide! admins cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id := ctx.Param("id")
	if id == claims.Subject {
		return errHttpForbidden
	}

	if _, err = api.svc.GetByID(ctx.Request().Context(), id); err != nil {
		if errors.Cause(err) == member.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding member by ID")
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! admins cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	for _, id := range query.IDs {
		if id == claims.Subject {
			return errHttpForbidden
		}
	}

	if err = api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting members")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) exportCategory(ctx echo.Context) error {
	category, err := member.ParseCategory(ctx.QueryParam("category"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "category", Error: err.Error()})
	}

	data, err := api.svc.ExportCategoryMembers(ctx.Request().Context(), category)
	if err != nil {
		return errors.Wrap(err, "exporting members")
	}
	return sendXLSX(ctx, data, fmt.Sprintf("members_%s", time.Now().UTC().Format("20060102")))
}

func (api *memberApi) registrationsReport(ctx echo.Context) error {
	var query ReportRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to ReportRequest")
	}

	var from, to time.Time
	var err error
	if query.From != "" {
		if from, err = time.Parse("2006-01-02", query.From); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "from", Error: "invalid date; expected YYYY-MM-DD"})
		}
	}
	if query.To != "" {
		if to, err = time.Parse("2006-01-02", query.To); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "invalid date; expected YYYY-MM-DD"})
		}
	}

	data, err := api.svc.RegistrationsReport(ctx.Request().Context(), query.Period, from, to)
	if err != nil {
		return errors.Wrap(err, "generating registrations report")
	}
	return sendXLSX(ctx, data, fmt.Sprintf("registrations_%s", time.Now().UTC().Format("20060102")))
}

func (api *memberApi) queryCategoryRequests(ctx echo.Context) error {
	filter := new(member.CategoryRequestFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []member.CategoryChangeRequest{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)
	if ordering.Orderings == nil {
		ordering.Orderings = []core.DBOrdering{{Field: "requested_at", Ascending: false}}
	}

	reqs, err := api.svc.QueryCategoryRequests(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying category requests")
	}
	if reqs == nil {
		reqs = []member.CategoryChangeRequest{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *memberApi) decideCategoryRequest(ctx echo.Context) error {
	var data DecideRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DecideRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.DecideCategoryRequest(ctx.Request().Context(), ctx.Param("id"), *data.Approve, data.AdminRemarks)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *memberApi) documentURL(ctx echo.Context) error {
	mbr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == member.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding member by ID")
	}

	var key string
	switch ctx.Param("field") {
	case "photo":
		key = mbr.PhotoKey
	case "state_nmc":
		key = mbr.StateNMCKey
	case "passport":
		key = mbr.PassportKey
	case "medical_qualification":
		key = mbr.QualificationKey
	case "payment_transaction_proof":
		key = mbr.PaymentProofKey
	}
	if key == "" {
		return errHttpNotFound
	}

	url, err := api.svc.DocumentURL(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "presigning document")
	}
	return ctx.JSON(http.StatusOK, DocumentURLResponse{URL: url})
}

func sendXLSX(ctx echo.Context, data []byte, name string) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s.xlsx", name))
	return ctx.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	OTPPendingResponse struct {
		Token   string `json:"token"`
		Detail  string `json:"detail"`
		Pending bool   `json:"otp_pending"`
	}

	VerifyOTPRequest struct {
		Code string `json:"code" validate:"required,len=6,numeric"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	SetStatusRequest struct {
		Status       string `json:"status" validate:"required"`
		AdminRemarks string `json:"admin_remarks"`
	}

	DecideRequest struct {
		Approve      *bool  `json:"approve" validate:"required"`
		AdminRemarks string `json:"admin_remarks"`
	}

	ReportRequest struct {
		Period string `query:"period"`
		From   string `query:"from"`
		To     string `query:"to"`
	}

	DocumentURLResponse struct {
		URL string `json:"url"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (vr *VerifyOTPRequest) Validate(validate *validator.Validate) error {
	vr.Code = core.CleanString(vr.Code)
	return validate.Struct(vr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (sr *SetStatusRequest) Validate(validate *validator.Validate) error {
	sr.Status = core.CleanString(sr.Status, true /* lower */)
	sr.AdminRemarks = core.CleanString(sr.AdminRemarks)
	return validate.Struct(sr)
}

func (dr *DecideRequest) Validate(validate *validator.Validate) error {
	dr.AdminRemarks = core.CleanString(dr.AdminRemarks)
	return validate.Struct(dr)
}
