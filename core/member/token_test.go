package member

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	secretKey = []byte("secret")
	passwordResetTimeoutDelta = 3 * 24 * time.Hour

	now := time.Now()
	mbr := Member{
		ID:        "9ff5fbd1-7ed6-4fd4-9ba2-5a4b3af43e3d",
		FullName:  "T",
		Username:  "ttestt",
		Email:     "t@test.test",
		Status:    StatusApproved,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = mbr.SetPassword("pwd")

	validToken := MakeToken(mbr)

	// generate an expired token
	dayLate := passwordResetTimeoutDelta + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := MakeToken(mbr)
	NowFunc = time.Now // reset

	tests := []struct {
		name    string
		mbr     Member
		token   string
		wantErr error
	}{
		{name: "no token", mbr: mbr, wantErr: errInvalidToken},
		{name: "invalid parts len", mbr: mbr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", mbr: mbr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", mbr: mbr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", mbr: mbr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", mbr: mbr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", mbr: mbr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.mbr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
