package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// fullTokenMiddleware rejects tokens issued before OTP verification.
func fullTokenMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.PendingOTP {
				return errOTPRequired
			}
			return next(ctx)
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && !claims.PendingOTP {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
