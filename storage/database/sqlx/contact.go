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
	"github.com/adamsassn/membership/core/contact"
)

type messageRepository struct {
	db *sqlx.DB
}

var _ contact.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{db: db}
}

type messageRow struct {
	ID        string       `db:"id"`
	Name      string       `db:"name"`
	Email     string       `db:"email"`
	Subject   string       `db:"subject"`
	Body      string       `db:"message"`
	Status    string       `db:"status"`
	Reply     string       `db:"reply"`
	RepliedAt sql.NullTime `db:"replied_at"`
	CreatedAt time.Time    `db:"created_at"`
}

func (repo messageRepository) toRow(msg contact.Message) messageRow {
	return messageRow{
		ID:        msg.ID,
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    string(msg.Status),
		Reply:     msg.Reply,
		RepliedAt: sql.NullTime{Time: msg.RepliedAt.UTC(), Valid: !msg.RepliedAt.IsZero()},
		CreatedAt: msg.CreatedAt.UTC(),
	}
}

func (repo messageRepository) fromRow(row messageRow) contact.Message {
	return contact.Message{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Subject:   row.Subject,
		Body:      row.Body,
		Status:    contact.Status(row.Status),
		Reply:     row.Reply,
		RepliedAt: row.RepliedAt.Time,
		CreatedAt: row.CreatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to contact.ErrNotFound
func (repo messageRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return contact.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg contact.Message) (contact.Message, error) {
	msg.ID = uuid.New().String()
	row := repo.toRow(msg)

	query := `INSERT INTO contact_message (id, name, email, subject, message, status, reply, replied_at, created_at)
		VALUES (:id, :name, :email, :subject, :message, :status, :reply, :replied_at, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return contact.Message{}, errors.Wrap(err, "inserting message")
	}
	return repo.fromRow(row), nil
}

func (repo messageRepository) GetMessage(ctx context.Context, id string) (contact.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return contact.Message{}, contact.ErrNotFound
	}
	var row messageRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM contact_message WHERE id = $1`, id); err != nil {
		return contact.Message{}, repo.trapNoRowsErr(err, "finding message")
	}
	return repo.fromRow(row), nil
}

func (repo messageRepository) QueryMessages(ctx context.Context, filter *contact.QueryFilter, ordering []core.DBOrdering) ([]contact.Message, error) {
	query := `SELECT * FROM contact_message`
	var args []interface{}

	if filter != nil && filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	}

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]contact.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, repo.fromRow(row))
	}
	return msgs, nil
}

func (repo messageRepository) UpdateMessage(ctx context.Context, msg contact.Message) (contact.Message, error) {
	row := repo.toRow(msg)

	query := `UPDATE contact_message SET status = :status, reply = :reply, replied_at = :replied_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return contact.Message{}, errors.Wrap(err, "updating message")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return contact.Message{}, contact.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo messageRepository) DeleteMessagesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM contact_message WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting messages")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting messages")
	}
	return nil
}
