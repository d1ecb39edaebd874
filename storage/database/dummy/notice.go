package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/notice"
)

type announcementRepository struct {
	db *announcementTable
}

var _ notice.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *DB) *announcementRepository {
	return &announcementRepository{db: db.announcement}
}

func (repo *announcementRepository) query() []notice.Announcement {
	anns := make([]notice.Announcement, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		anns = append(anns, *a)
	}
	return anns
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, ann notice.Announcement) (notice.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ann.ID = uuid.New().String()
	repo.db.table[ann.ID] = &ann
	return ann, nil
}

func (repo *announcementRepository) GetAnnouncement(ctx context.Context, id string) (notice.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if ann, ok := repo.db.table[id]; ok {
		return *ann, nil
	}
	return notice.Announcement{}, notice.ErrNotFound
}

func (repo *announcementRepository) QueryAnnouncements(ctx context.Context, filter *notice.QueryFilter, ordering []core.DBOrdering) ([]notice.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	anns := repo.query()

	if filter != nil && filter.Visibility != "" {
		var filtered []notice.Announcement
		for _, a := range anns {
			if string(a.Visibility) == filter.Visibility {
				filtered = append(filtered, a)
			}
		}
		anns = filtered
	}

	if len(ordering) > 0 && ordering[0].Field == "created_at" {
		asc := ordering[0].Ascending
		sort.SliceStable(anns, func(i, j int) bool {
			less := anns[i].CreatedAt.Before(anns[j].CreatedAt)
			if !asc {
				return !less
			}
			return less
		})
	}
	return anns, nil
}

func (repo *announcementRepository) UpdateAnnouncement(ctx context.Context, ann notice.Announcement) (notice.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[ann.ID]; !ok {
		return notice.Announcement{}, notice.ErrNotFound
	}
	repo.db.table[ann.ID] = &ann
	return ann, nil
}

func (repo *announcementRepository) DeleteAnnouncementsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
