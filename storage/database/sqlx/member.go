package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/member"
)

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{db: db}
}

type memberRow struct {
	ID                   string       `db:"id"`
	Username             string       `db:"username"`
	Email                string       `db:"email"`
	PasswordHash         []byte       `db:"password_hash"`
	FullName             string       `db:"full_name"`
	Gender               string       `db:"gender"`
	WhatsappNumber       string       `db:"whatsapp_number"`
	MobileNumber         string       `db:"mobile_number"`
	CommunicationAddress string       `db:"address_communication"`
	PermanentAddress     string       `db:"address_permanent"`
	District             string       `db:"district"`
	FatherSpouseDetails  string       `db:"father_spouse_details"`
	BloodGroup           string       `db:"blood_group"`
	Role                 string       `db:"role"`
	EducationalStatus    string       `db:"educational_status"`
	Category             string       `db:"category"`
	UniversityName       string       `db:"university_name"`
	CountryOfUniversity  string       `db:"country_university"`
	YearOfJoining        string       `db:"year_of_joining"`
	YearOfCompletion     string       `db:"year_of_completion"`
	PhotoKey             string       `db:"photo_key"`
	StateNMCKey          string       `db:"state_nmc_key"`
	PassportKey          string       `db:"passport_key"`
	QualificationKey     string       `db:"qualification_key"`
	PaymentProofKey      string       `db:"payment_proof_key"`
	DateTimeOfPayment    string       `db:"date_time_of_payment"`
	WillingToBeDonor     bool         `db:"willing_to_be_donor"`
	Agreement            bool         `db:"agreement"`
	MID                  string       `db:"mid"`
	Application          bool         `db:"application"`
	Status               string       `db:"status"`
	AdminRemarks         string       `db:"admin_remarks"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"`
	LastLogin            sql.NullTime `db:"last_login"`
}

var memberColumns = []string{
	"id", "username", "email", "password_hash", "full_name", "gender",
	"whatsapp_number", "mobile_number", "address_communication", "address_permanent",
	"district", "father_spouse_details", "blood_group", "role", "educational_status",
	"category", "university_name", "country_university", "year_of_joining", "year_of_completion",
	"photo_key", "state_nmc_key", "passport_key", "qualification_key", "payment_proof_key",
	"date_time_of_payment", "willing_to_be_donor", "agreement", "mid", "application",
	"status", "admin_remarks", "created_at", "updated_at", "last_login",
}

func (repo memberRepository) toRow(mbr member.Member) memberRow {
	return memberRow{
		ID:                   mbr.ID,
		Username:             mbr.Username,
		Email:                mbr.Email,
		PasswordHash:         mbr.PasswordHash,
		FullName:             mbr.FullName,
		Gender:               mbr.Gender,
		WhatsappNumber:       mbr.WhatsappNumber,
		MobileNumber:         mbr.MobileNumber,
		CommunicationAddress: mbr.CommunicationAddress,
		PermanentAddress:     mbr.PermanentAddress,
		District:             mbr.District,
		FatherSpouseDetails:  mbr.FatherSpouseDetails,
		BloodGroup:           mbr.BloodGroup,
		Role:                 string(mbr.Role),
		EducationalStatus:    mbr.EducationalStatus,
		Category:             string(mbr.Category),
		UniversityName:       mbr.UniversityName,
		CountryOfUniversity:  mbr.CountryOfUniversity,
		YearOfJoining:        mbr.YearOfJoining,
		YearOfCompletion:     mbr.YearOfCompletion,
		PhotoKey:             mbr.PhotoKey,
		StateNMCKey:          mbr.StateNMCKey,
		PassportKey:          mbr.PassportKey,
		QualificationKey:     mbr.QualificationKey,
		PaymentProofKey:      mbr.PaymentProofKey,
		DateTimeOfPayment:    mbr.DateTimeOfPayment,
		WillingToBeDonor:     mbr.WillingToBeDonor,
		Agreement:            mbr.Agreement,
		MID:                  mbr.MID,
		Application:          mbr.Application,
		Status:               string(mbr.Status),
		AdminRemarks:         mbr.AdminRemarks,
		CreatedAt:            mbr.CreatedAt.UTC(),
		UpdatedAt:            mbr.UpdatedAt.UTC(),
		LastLogin:            sql.NullTime{Time: mbr.LastLogin.UTC(), Valid: !mbr.LastLogin.IsZero()},
	}
}

func (repo memberRepository) fromRow(row memberRow) member.Member {
	return member.Member{
		ID:                   row.ID,
		Username:             row.Username,
		Email:                row.Email,
		PasswordHash:         row.PasswordHash,
		FullName:             row.FullName,
		Gender:               row.Gender,
		WhatsappNumber:       row.WhatsappNumber,
		MobileNumber:         row.MobileNumber,
		CommunicationAddress: row.CommunicationAddress,
		PermanentAddress:     row.PermanentAddress,
		District:             row.District,
		FatherSpouseDetails:  row.FatherSpouseDetails,
		BloodGroup:           row.BloodGroup,
		Role:                 member.Role(row.Role),
		EducationalStatus:    row.EducationalStatus,
		Category:             member.Category(row.Category),
		UniversityName:       row.UniversityName,
		CountryOfUniversity:  row.CountryOfUniversity,
		YearOfJoining:        row.YearOfJoining,
		YearOfCompletion:     row.YearOfCompletion,
		PhotoKey:             row.PhotoKey,
		StateNMCKey:          row.StateNMCKey,
		PassportKey:          row.PassportKey,
		QualificationKey:     row.QualificationKey,
		PaymentProofKey:      row.PaymentProofKey,
		DateTimeOfPayment:    row.DateTimeOfPayment,
		WillingToBeDonor:     row.WillingToBeDonor,
		Agreement:            row.Agreement,
		MID:                  row.MID,
		Application:          row.Application,
		Status:               member.Status(row.Status),
		AdminRemarks:         row.AdminRemarks,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
		LastLogin:            row.LastLogin.Time,
	}
}

func (repo memberRepository) fromRows(rows []memberRow) []member.Member {
	members := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, repo.fromRow(row))
	}
	return members
}

// trapNoRowsErr maps psql "no rows" err to member.ErrNotFound
func (repo memberRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return member.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo memberRepository) CheckUniqueness(ctx context.Context, username, email, whatsapp, mobile string, excluded ...member.Member) error {
	query := `SELECT username, email, whatsapp_number, mobile_number FROM member
		WHERE (username = ? OR email = ? OR whatsapp_number = ? OR mobile_number = ?)`
	args := []interface{}{username, email, whatsapp, mobile}

	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, mbr := range excluded {
			ids = append(ids, mbr.ID)
		}
		inQuery, inArgs, err := sqlx.In(" AND id NOT IN (?)", ids)
		if err != nil {
			return errors.Wrap(err, "checking member uniqueness")
		}
		query += inQuery
		args = append(args, inArgs...)
	}

	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking member uniqueness")
	}
	for _, row := range rows {
		switch {
		case row.Username == username:
			return member.ErrUsernameExists
		case row.Email == email:
			return member.ErrEmailExists
		case row.WhatsappNumber == whatsapp:
			return member.ErrWhatsappNumberExists
		case row.MobileNumber == mobile:
			return member.ErrMobileNumberExists
		}
	}
	return nil
}

func (repo memberRepository) CreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	mbr.ID = uuid.New().String()
	row := repo.toRow(mbr)

	query := `INSERT INTO member (` + strings.Join(memberColumns, ", ") + `)
		VALUES (:` + strings.Join(memberColumns, ", :") + `)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return member.Member{}, errors.Wrap(err, "inserting member")
	}
	return repo.fromRow(row), nil
}

func (repo memberRepository) GetMember(ctx context.Context, filter member.GetFilter) (member.Member, error) {
	var (
		where string
		args  []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return member.Member{}, member.ErrNotFound
		}
		where = "id = $1"
		args = []interface{}{filter.ID}
	case filter.Username != "":
		where = "username = $1"
		args = []interface{}{filter.Username}
	case filter.Email != "":
		where = "email = $1"
		args = []interface{}{filter.Email}
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		where = "username = $1 OR email = $2"
		args = []interface{}{uname, email}
	default:
		return member.Member{}, member.ErrNotFound
	}

	var row memberRow
	query := `SELECT * FROM member WHERE ` + where
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return member.Member{}, repo.trapNoRowsErr(err, "finding member")
	}
	return repo.fromRow(row), nil
}

func (repo memberRepository) QueryMembers(ctx context.Context, filter *member.QueryFilter, ordering []core.DBOrdering) ([]member.Member, error) {
	query := `SELECT * FROM member`
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// members with FullName, Username or Email matching the search keyword
		if filter.Search != "" {
			where = append(where, "(full_name ILIKE ? OR username ILIKE ? OR email ILIKE ?)")
			val := "%" + filter.Search + "%"
			args = append(args, val, val, val)
		}
		if filter.Role != "" {
			where = append(where, "role = ?")
			args = append(args, filter.Role)
		}
		if filter.Status != "" {
			where = append(where, "status = ?")
			args = append(args, filter.Status)
		}
		if filter.Category != "" {
			where = append(where, "category = ?")
			args = append(args, filter.Category)
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= ?")
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= ?")
			args = append(args, filter.CreatedTo.UTC())
		}
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	return repo.fromRows(rows), nil
}

func (repo memberRepository) UpdateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	row := repo.toRow(mbr)

	sets := make([]string, 0, len(memberColumns)-1)
	for _, col := range memberColumns {
		if col == "id" {
			continue
		}
		sets = append(sets, col+" = :"+col)
	}
	query := `UPDATE member SET ` + strings.Join(sets, ", ") + ` WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "updating member")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return member.Member{}, member.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo memberRepository) UpdateOrCreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	if mbr.ID == "" {
		return repo.CreateMember(ctx, mbr)
	}
	return repo.UpdateMember(ctx, mbr)
}

func (repo memberRepository) DeleteMembersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM member WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting members")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting members")
	}
	return nil
}
