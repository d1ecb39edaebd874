package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/contact"
)

type messageRepository struct {
	db *messageTable
}

var _ contact.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db.message}
}

func (repo *messageRepository) query() []contact.Message {
	msgs := make([]contact.Message, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		msgs = append(msgs, *m)
	}
	return msgs
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg contact.Message) (contact.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	msg.ID = uuid.New().String()
	repo.db.table[msg.ID] = &msg
	return msg, nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id string) (contact.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if msg, ok := repo.db.table[id]; ok {
		return *msg, nil
	}
	return contact.Message{}, contact.ErrNotFound
}

func (repo *messageRepository) QueryMessages(ctx context.Context, filter *contact.QueryFilter, ordering []core.DBOrdering) ([]contact.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := repo.query()

	if filter != nil && filter.Status != "" {
		var filtered []contact.Message
		for _, m := range msgs {
			if string(m.Status) == filter.Status {
				filtered = append(filtered, m)
			}
		}
		msgs = filtered
	}

	if len(ordering) > 0 && ordering[0].Field == "created_at" {
		asc := ordering[0].Ascending
		sort.SliceStable(msgs, func(i, j int) bool {
			less := msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
			if !asc {
				return !less
			}
			return less
		})
	}
	return msgs, nil
}

func (repo *messageRepository) UpdateMessage(ctx context.Context, msg contact.Message) (contact.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[msg.ID]; !ok {
		return contact.Message{}, contact.ErrNotFound
	}
	repo.db.table[msg.ID] = &msg
	return msg, nil
}

func (repo *messageRepository) DeleteMessagesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
