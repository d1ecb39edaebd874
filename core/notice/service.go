package notice

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
)

var (
	// errors
	ErrNotFound          = errors.New("announcement not found")
	ErrInvalidVisibility = errors.New("invalid visibility")
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		GetAnnouncement(ctx context.Context, id string) (Announcement, error)
		QueryAnnouncements(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Announcement, error)
		UpdateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		DeleteAnnouncementsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Create(ctx context.Context, na NewAnnouncement, createdBy string) (Announcement, error)
		Get(ctx context.Context, id string) (Announcement, error)
		// QueryPublic lists announcements visible without authentication.
		QueryPublic(ctx context.Context) ([]Announcement, error)
		// QueryAll lists all announcements, newest first.
		QueryAll(ctx context.Context) ([]Announcement, error)
		Update(ctx context.Context, id string, ua UpdateAnnouncement) (Announcement, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

var newestFirst = []core.DBOrdering{{Field: "created_at", Ascending: false}}

func (svc *service) Create(ctx context.Context, na NewAnnouncement, createdBy string) (Announcement, error) {
	now := time.Now().UTC()
	ann := Announcement{
		Text:       na.Text,
		HyperLink:  na.HyperLink,
		Visibility: Visibility(na.Visibility),
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ann, err := svc.repo.CreateAnnouncement(ctx, ann)
	if err != nil {
		return Announcement{}, errors.Wrap(err, "creating announcement")
	}
	return ann, nil
}

func (svc *service) Get(ctx context.Context, id string) (Announcement, error) {
	return svc.repo.GetAnnouncement(ctx, id)
}

func (svc *service) QueryPublic(ctx context.Context) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, &QueryFilter{Visibility: string(VisibilityPublic)}, newestFirst)
}

func (svc *service) QueryAll(ctx context.Context) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, nil, newestFirst)
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAnnouncement) (Announcement, error) {
	ann, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	if ua.Text != "" {
		ann.Text = ua.Text
	}
	if ua.HyperLink != "" {
		ann.HyperLink = ua.HyperLink
	}
	if ua.Visibility != "" {
		ann.Visibility = Visibility(ua.Visibility)
	}
	ann.UpdatedAt = time.Now().UTC()

	ann, err = svc.repo.UpdateAnnouncement(ctx, ann)
	if err != nil {
		return Announcement{}, errors.Wrap(err, "updating announcement")
	}
	return ann, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAnnouncementsByID(ctx, ids...)
}
