package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core/member"
)

type otpRepository struct {
	db *sqlx.DB
}

var _ member.OTPRepository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *sqlx.DB) *otpRepository {
	return &otpRepository{db: db}
}

type otpRow struct {
	MemberID  string    `db:"member_id"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo otpRepository) UpsertOTP(ctx context.Context, otp member.OTP) (member.OTP, error) {
	row := otpRow{MemberID: otp.MemberID, Code: otp.Code, CreatedAt: otp.CreatedAt.UTC()}

	// a member only ever has one pending code
	query := `INSERT INTO otp (member_id, code, created_at) VALUES (:member_id, :code, :created_at)
		ON CONFLICT (member_id) DO UPDATE SET code = EXCLUDED.code, created_at = EXCLUDED.created_at`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return member.OTP{}, errors.Wrap(err, "upserting verification code")
	}
	return otp, nil
}

func (repo otpRepository) GetOTP(ctx context.Context, memberID string) (member.OTP, error) {
	var row otpRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM otp WHERE member_id = $1`, memberID); err != nil {
		if err == sql.ErrNoRows {
			return member.OTP{}, member.ErrOTPNotFound
		}
		return member.OTP{}, errors.Wrap(err, "finding verification code")
	}
	return member.OTP{MemberID: row.MemberID, Code: row.Code, CreatedAt: row.CreatedAt}, nil
}

func (repo otpRepository) DeleteOTP(ctx context.Context, memberID string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM otp WHERE member_id = $1`, memberID); err != nil {
		return errors.Wrap(err, "deleting verification code")
	}
	return nil
}
