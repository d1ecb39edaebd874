package member

import (
	"github.com/adamsassn/membership/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service with a deterministic verification code
// for use in tests.
func NewServiceMock(
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
	return &serviceMock{
		service: service{
			repo:       repo,
			otpRepo:    otpRepo,
			catRepo:    catRepo,
			mailSvc:    mailSvc,
			storageSvc: storageSvc,
			logger:     logger,
			conf:       conf,
			otpGenFunc: func() (string, error) { return MockOTPCode, nil },
		},
	}
}

// MockOTPCode is the verification code issued by NewServiceMock.
const MockOTPCode = "123456"
