package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/member"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "memberToken",
		Claims:        new(Claims),
	}
	contextMemberKey = "member"

	appName                   string
	jwtExpirationDelta        time.Duration
	jwtRefreshExpirationDelta time.Duration
	otpTokenExpirationDelta   time.Duration
)

func initAuth(conf *core.Config) {
	appJWTConfig.SigningKey = conf.SecretKey
	appName = conf.AppName
	jwtExpirationDelta = conf.Server.JWTExpirationDelta
	jwtRefreshExpirationDelta = conf.Server.JWTRefreshExpirationDelta
	otpTokenExpirationDelta = conf.Server.OTPTokenExpirationDelta
}

// Claims represents the authorization claims transmitted via a JWT.
// A token with PendingOTP set only grants access to the OTP verification
// endpoints; the full token is issued once the code is verified.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
	PendingOTP   bool   `json:"otp_pending,omitempty"`
}

func GetMemberClaims(mbr member.Member, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    appName,
			Subject:   mbr.ID,
			Audience:  "Membership",
			ExpiresAt: now.Add(jwtExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     mbr.Username,
		Email:        mbr.Email,
		Role:         string(mbr.Role),
		IsAdmin:      mbr.IsAdmin(),
	}
	return claims
}

// GetPendingClaims returns the short-lived claims issued between a successful
// password check and the OTP verification.
func GetPendingClaims(mbr member.Member) *Claims {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    appName,
			Subject:   mbr.ID,
			Audience:  "Membership",
			ExpiresAt: now.Add(otpTokenExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:   mbr.Username,
		Email:      mbr.Email,
		PendingOTP: true,
	}
	return claims
}

// GenerateToken generates a signed JWT token string representing the member Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextMember(ctx echo.Context, svc member.Service, clms ...Claims) (member.Member, error) {
	if mbr, ok := ctx.Get(contextMemberKey).(member.Member); ok {
		return mbr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return member.Member{}, errors.Wrap(err, "getting context claims")
		}
	}

	mbr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "finding member by ID")
	}
	ctx.Set(contextMemberKey, mbr)
	return mbr, nil
}

func refreshToken(ctx echo.Context, svc member.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	mbr, err := getContextMember(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context member")
	}

	// check if member is still approved
	if !mbr.IsApproved() {
		return "", errAccountNotApproved
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(jwtRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetMemberClaims(mbr, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
