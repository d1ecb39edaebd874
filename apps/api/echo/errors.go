package echoapi

import (
	"net/http"
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/bulkmail"
	"github.com/adamsassn/membership/core/contact"
	"github.com/adamsassn/membership/core/member"
	"github.com/adamsassn/membership/core/notice"
	"github.com/adamsassn/membership/core/rulebook"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "member not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountNotApproved   = echo.NewHTTPError(http.StatusForbidden, "membership not approved")
	errOTPRequired          = echo.NewHTTPError(http.StatusForbidden, "verification code required")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainErrStatusCodes maps well-known service errors to their HTTP status.
var domainErrStatusCodes = map[error]int{
	member.ErrNotFound:              http.StatusNotFound,
	member.ErrRequestNotFound:       http.StatusNotFound,
	member.ErrApplicationPending:    http.StatusForbidden,
	member.ErrApplicationRejected:   http.StatusForbidden,
	member.ErrRequestAlreadyDecided: http.StatusBadRequest,
	member.ErrOTPMismatch:           http.StatusBadRequest,
	member.ErrOTPExpired:            http.StatusBadRequest,
	member.ErrInvalidStatus:         http.StatusBadRequest,
	member.ErrInvalidCategory:       http.StatusBadRequest,
	member.ErrInvalidPeriod:         http.StatusBadRequest,
	notice.ErrNotFound:              http.StatusNotFound,
	contact.ErrNotFound:             http.StatusNotFound,
	rulebook.ErrNotFound:            http.StatusNotFound,
	rulebook.ErrNoActive:            http.StatusNotFound,
	bulkmail.ErrJobNotFound:         http.StatusNotFound,
	bulkmail.ErrJobDone:             http.StatusBadRequest,
	bulkmail.ErrNoRecipients:        http.StatusBadRequest,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		var c int
		var ok bool
		if reflect.TypeOf(cause).Comparable() { // unhashable error types (e.g. validator.ValidationErrors) would panic as map keys
			c, ok = domainErrStatusCodes[cause]
		}
		if ok {
			code = c
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var mbr member.Member
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					mbr.ID = claims.Subject
					mbr.Username = claims.Username
					mbr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), mbr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
