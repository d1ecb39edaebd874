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

type categoryRequestRepository struct {
	db *sqlx.DB
}

var _ member.CategoryRequestRepository = (*categoryRequestRepository)(nil) // interface compliance check

func NewCategoryRequestRepository(db *sqlx.DB) *categoryRequestRepository {
	return &categoryRequestRepository{db: db}
}

type categoryRequestRow struct {
	ID                string       `db:"id"`
	MemberID          string       `db:"member_id"`
	CurrentCategory   string       `db:"current_category"`
	RequestedCategory string       `db:"requested_category"`
	Status            string       `db:"status"`
	AdminRemarks      string       `db:"admin_remarks"`
	RequestedAt       time.Time    `db:"requested_at"`
	DecidedAt         sql.NullTime `db:"decided_at"`
}

func (repo categoryRequestRepository) toRow(req member.CategoryChangeRequest) categoryRequestRow {
	return categoryRequestRow{
		ID:                req.ID,
		MemberID:          req.MemberID,
		CurrentCategory:   string(req.CurrentCategory),
		RequestedCategory: string(req.RequestedCategory),
		Status:            string(req.Status),
		AdminRemarks:      req.AdminRemarks,
		RequestedAt:       req.RequestedAt.UTC(),
		DecidedAt:         sql.NullTime{Time: req.DecidedAt.UTC(), Valid: !req.DecidedAt.IsZero()},
	}
}

func (repo categoryRequestRepository) fromRow(row categoryRequestRow) member.CategoryChangeRequest {
	return member.CategoryChangeRequest{
		ID:                row.ID,
		MemberID:          row.MemberID,
		CurrentCategory:   member.Category(row.CurrentCategory),
		RequestedCategory: member.Category(row.RequestedCategory),
		Status:            member.Status(row.Status),
		AdminRemarks:      row.AdminRemarks,
		RequestedAt:       row.RequestedAt,
		DecidedAt:         row.DecidedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to member.ErrRequestNotFound
func (repo categoryRequestRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return member.ErrRequestNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo categoryRequestRepository) CreateCategoryRequest(ctx context.Context, req member.CategoryChangeRequest) (member.CategoryChangeRequest, error) {
	req.ID = uuid.New().String()
	row := repo.toRow(req)

	query := `INSERT INTO category_change_request
		(id, member_id, current_category, requested_category, status, admin_remarks, requested_at, decided_at)
		VALUES (:id, :member_id, :current_category, :requested_category, :status, :admin_remarks, :requested_at, :decided_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return member.CategoryChangeRequest{}, errors.Wrap(err, "inserting category request")
	}
	return repo.fromRow(row), nil
}

func (repo categoryRequestRepository) GetCategoryRequest(ctx context.Context, id string) (member.CategoryChangeRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return member.CategoryChangeRequest{}, member.ErrRequestNotFound
	}
	var row categoryRequestRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM category_change_request WHERE id = $1`, id); err != nil {
		return member.CategoryChangeRequest{}, repo.trapNoRowsErr(err, "finding category request")
	}
	return repo.fromRow(row), nil
}

func (repo categoryRequestRepository) GetPendingCategoryRequest(ctx context.Context, memberID string) (member.CategoryChangeRequest, error) {
	var row categoryRequestRow
	query := `SELECT * FROM category_change_request WHERE member_id = $1 AND status = $2`
	if err := repo.db.GetContext(ctx, &row, query, memberID, member.StatusPending); err != nil {
		return member.CategoryChangeRequest{}, repo.trapNoRowsErr(err, "finding pending category request")
	}
	return repo.fromRow(row), nil
}

func (repo categoryRequestRepository) QueryCategoryRequests(ctx context.Context, filter *member.CategoryRequestFilter, ordering []core.DBOrdering) ([]member.CategoryChangeRequest, error) {
	query := `SELECT * FROM category_change_request`
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		if filter.MemberID != "" {
			where = append(where, "member_id = ?")
			args = append(args, filter.MemberID)
		}
		if filter.Status != "" {
			where = append(where, "status = ?")
			args = append(args, filter.Status)
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

	var rows []categoryRequestRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying category requests")
	}
	reqs := make([]member.CategoryChangeRequest, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, repo.fromRow(row))
	}
	return reqs, nil
}

func (repo categoryRequestRepository) UpdateCategoryRequest(ctx context.Context, req member.CategoryChangeRequest) (member.CategoryChangeRequest, error) {
	row := repo.toRow(req)

	query := `UPDATE category_change_request SET status = :status, admin_remarks = :admin_remarks, decided_at = :decided_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return member.CategoryChangeRequest{}, errors.Wrap(err, "updating category request")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return member.CategoryChangeRequest{}, member.ErrRequestNotFound
	}
	return repo.fromRow(row), nil
}
