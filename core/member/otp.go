package member

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OTP is a one time password emailed to a member at login.
// A member has at most one active OTP; issuing a new one overwrites it.
type OTP struct {
	MemberID  string
	Code      string
	CreatedAt time.Time // UTC
}

var otpCeil = big.NewInt(1000000)

// GenerateOTPCode returns a random 6 digit verification code.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCeil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}
