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
	"github.com/adamsassn/membership/core/notice"
)

type announcementRepository struct {
	db *sqlx.DB
}

var _ notice.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *sqlx.DB) *announcementRepository {
	return &announcementRepository{db: db}
}

type announcementRow struct {
	ID         string    `db:"id"`
	Text       string    `db:"announcement"`
	HyperLink  string    `db:"hyper_link"`
	Visibility string    `db:"visibility"`
	CreatedBy  string    `db:"created_by"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (repo announcementRepository) toRow(ann notice.Announcement) announcementRow {
	return announcementRow{
		ID:         ann.ID,
		Text:       ann.Text,
		HyperLink:  ann.HyperLink,
		Visibility: string(ann.Visibility),
		CreatedBy:  ann.CreatedBy,
		CreatedAt:  ann.CreatedAt.UTC(),
		UpdatedAt:  ann.UpdatedAt.UTC(),
	}
}

func (repo announcementRepository) fromRow(row announcementRow) notice.Announcement {
	return notice.Announcement{
		ID:         row.ID,
		Text:       row.Text,
		HyperLink:  row.HyperLink,
		Visibility: notice.Visibility(row.Visibility),
		CreatedBy:  row.CreatedBy,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to notice.ErrNotFound
func (repo announcementRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return notice.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, ann notice.Announcement) (notice.Announcement, error) {
	ann.ID = uuid.New().String()
	row := repo.toRow(ann)

	query := `INSERT INTO announcement (id, announcement, hyper_link, visibility, created_by, created_at, updated_at)
		VALUES (:id, :announcement, :hyper_link, :visibility, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return notice.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return repo.fromRow(row), nil
}

func (repo announcementRepository) GetAnnouncement(ctx context.Context, id string) (notice.Announcement, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notice.Announcement{}, notice.ErrNotFound
	}
	var row announcementRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM announcement WHERE id = $1`, id); err != nil {
		return notice.Announcement{}, repo.trapNoRowsErr(err, "finding announcement")
	}
	return repo.fromRow(row), nil
}

func (repo announcementRepository) QueryAnnouncements(ctx context.Context, filter *notice.QueryFilter, ordering []core.DBOrdering) ([]notice.Announcement, error) {
	query := `SELECT * FROM announcement`
	var args []interface{}

	if filter != nil && filter.Visibility != "" {
		query += " WHERE visibility = ?"
		args = append(args, filter.Visibility)
	}

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []announcementRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	anns := make([]notice.Announcement, 0, len(rows))
	for _, row := range rows {
		anns = append(anns, repo.fromRow(row))
	}
	return anns, nil
}

func (repo announcementRepository) UpdateAnnouncement(ctx context.Context, ann notice.Announcement) (notice.Announcement, error) {
	row := repo.toRow(ann)

	query := `UPDATE announcement SET announcement = :announcement, hyper_link = :hyper_link,
		visibility = :visibility, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return notice.Announcement{}, errors.Wrap(err, "updating announcement")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return notice.Announcement{}, notice.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo announcementRepository) DeleteAnnouncementsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM announcement WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting announcements")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting announcements")
	}
	return nil
}
