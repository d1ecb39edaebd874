package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/rulebook"
)

type rulebookRepository struct {
	db *rulebookTable
}

var _ rulebook.Repository = (*rulebookRepository)(nil) // interface compliance check

func NewRulebookRepository(db *DB) *rulebookRepository {
	return &rulebookRepository{db: db.rulebook}
}

func (repo *rulebookRepository) query() []rulebook.Rulebook {
	rbs := make([]rulebook.Rulebook, 0, len(repo.db.table))
	for _, rb := range repo.db.table {
		rbs = append(rbs, *rb)
	}
	return rbs
}

func (repo *rulebookRepository) CreateRulebook(ctx context.Context, rb rulebook.Rulebook) (rulebook.Rulebook, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rb.ID = uuid.New().String()
	repo.db.table[rb.ID] = &rb
	return rb, nil
}

func (repo *rulebookRepository) GetRulebook(ctx context.Context, id string) (rulebook.Rulebook, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if rb, ok := repo.db.table[id]; ok {
		return *rb, nil
	}
	return rulebook.Rulebook{}, rulebook.ErrNotFound
}

func (repo *rulebookRepository) GetActiveRulebook(ctx context.Context) (rulebook.Rulebook, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, rb := range repo.query() {
		if rb.IsActive {
			return rb, nil
		}
	}
	return rulebook.Rulebook{}, rulebook.ErrNotFound
}

func (repo *rulebookRepository) QueryRulebooks(ctx context.Context, ordering []core.DBOrdering) ([]rulebook.Rulebook, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rbs := repo.query()

	if len(ordering) > 0 && ordering[0].Field == "uploaded_at" {
		asc := ordering[0].Ascending
		sort.SliceStable(rbs, func(i, j int) bool {
			less := rbs[i].UploadedAt.Before(rbs[j].UploadedAt)
			if !asc {
				return !less
			}
			return less
		})
	}
	return rbs, nil
}

func (repo *rulebookRepository) UpdateRulebook(ctx context.Context, rb rulebook.Rulebook) (rulebook.Rulebook, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[rb.ID]; !ok {
		return rulebook.Rulebook{}, rulebook.ErrNotFound
	}
	repo.db.table[rb.ID] = &rb
	return rb, nil
}

func (repo *rulebookRepository) DeactivateAll(ctx context.Context) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, rb := range repo.db.table {
		rb.IsActive = false
	}
	return nil
}

func (repo *rulebookRepository) DeleteRulebooksByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
