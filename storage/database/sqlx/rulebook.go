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
	"github.com/adamsassn/membership/core/rulebook"
)

type rulebookRepository struct {
	db *sqlx.DB
}

var _ rulebook.Repository = (*rulebookRepository)(nil) // interface compliance check

func NewRulebookRepository(db *sqlx.DB) *rulebookRepository {
	return &rulebookRepository{db: db}
}

type rulebookRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	ObjectKey   string    `db:"object_key"`
	IsActive    bool      `db:"is_active"`
	UploadedBy  string    `db:"uploaded_by"`
	UploadedAt  time.Time `db:"uploaded_at"`
}

func (repo rulebookRepository) toRow(rb rulebook.Rulebook) rulebookRow {
	return rulebookRow{
		ID:          rb.ID,
		Title:       rb.Title,
		Description: rb.Description,
		ObjectKey:   rb.ObjectKey,
		IsActive:    rb.IsActive,
		UploadedBy:  rb.UploadedBy,
		UploadedAt:  rb.UploadedAt.UTC(),
	}
}

func (repo rulebookRepository) fromRow(row rulebookRow) rulebook.Rulebook {
	return rulebook.Rulebook{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		ObjectKey:   row.ObjectKey,
		IsActive:    row.IsActive,
		UploadedBy:  row.UploadedBy,
		UploadedAt:  row.UploadedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to rulebook.ErrNotFound
func (repo rulebookRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return rulebook.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo rulebookRepository) CreateRulebook(ctx context.Context, rb rulebook.Rulebook) (rulebook.Rulebook, error) {
	rb.ID = uuid.New().String()
	row := repo.toRow(rb)

	query := `INSERT INTO rulebook (id, title, description, object_key, is_active, uploaded_by, uploaded_at)
		VALUES (:id, :title, :description, :object_key, :is_active, :uploaded_by, :uploaded_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return rulebook.Rulebook{}, errors.Wrap(err, "inserting rulebook")
	}
	return repo.fromRow(row), nil
}

func (repo rulebookRepository) GetRulebook(ctx context.Context, id string) (rulebook.Rulebook, error) {
	if _, err := uuid.Parse(id); err != nil {
		return rulebook.Rulebook{}, rulebook.ErrNotFound
	}
	var row rulebookRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM rulebook WHERE id = $1`, id); err != nil {
		return rulebook.Rulebook{}, repo.trapNoRowsErr(err, "finding rulebook")
	}
	return repo.fromRow(row), nil
}

func (repo rulebookRepository) GetActiveRulebook(ctx context.Context) (rulebook.Rulebook, error) {
	var row rulebookRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM rulebook WHERE is_active = true`); err != nil {
		return rulebook.Rulebook{}, repo.trapNoRowsErr(err, "finding active rulebook")
	}
	return repo.fromRow(row), nil
}

func (repo rulebookRepository) QueryRulebooks(ctx context.Context, ordering []core.DBOrdering) ([]rulebook.Rulebook, error) {
	query := `SELECT * FROM rulebook`

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []rulebookRow
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying rulebooks")
	}
	rbs := make([]rulebook.Rulebook, 0, len(rows))
	for _, row := range rows {
		rbs = append(rbs, repo.fromRow(row))
	}
	return rbs, nil
}

func (repo rulebookRepository) UpdateRulebook(ctx context.Context, rb rulebook.Rulebook) (rulebook.Rulebook, error) {
	row := repo.toRow(rb)

	query := `UPDATE rulebook SET title = :title, description = :description, is_active = :is_active WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return rulebook.Rulebook{}, errors.Wrap(err, "updating rulebook")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return rulebook.Rulebook{}, rulebook.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo rulebookRepository) DeactivateAll(ctx context.Context) error {
	if _, err := repo.db.ExecContext(ctx, `UPDATE rulebook SET is_active = false WHERE is_active = true`); err != nil {
		return errors.Wrap(err, "deactivating rulebooks")
	}
	return nil
}

func (repo rulebookRepository) DeleteRulebooksByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM rulebook WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting rulebooks")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting rulebooks")
	}
	return nil
}
