package notice

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/adamsassn/membership/core"
)

// Announcement visibility
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityMembers Visibility = "members"
)

var AllVisibilities = []Visibility{VisibilityPublic, VisibilityMembers}

func ParseVisibility(s string) (Visibility, error) {
	vis := Visibility(core.CleanString(s, true /* lower */))
	for _, v := range AllVisibilities {
		if vis == v {
			return vis, nil
		}
	}
	return "", ErrInvalidVisibility
}

// Announcement is a notice board entry. Public announcements are shown to
// everyone; members-only ones require an approved membership.
type Announcement struct {
	ID         string     `json:"id"`
	Text       string     `json:"announcement"`
	HyperLink  string     `json:"hyper_link,omitempty"`
	Visibility Visibility `json:"visibility"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
	UpdatedAt  time.Time  `json:"updated_at"` // UTC
}

// NewAnnouncement contains information needed to publish an Announcement.
type NewAnnouncement struct {
	Text       string `json:"announcement" validate:"required"`
	HyperLink  string `json:"hyper_link" validate:"omitempty,url"`
	Visibility string `json:"visibility" validate:"required,visibility_"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Text = core.CleanString(na.Text)
	na.HyperLink = core.CleanString(na.HyperLink)
	na.Visibility = core.CleanString(na.Visibility, true /* lower */)
	return validate.Struct(na)
}

// UpdateAnnouncement defines what may be modified on an existing Announcement.
type UpdateAnnouncement struct {
	Text       string `json:"announcement"`
	HyperLink  string `json:"hyper_link" validate:"omitempty,url"`
	Visibility string `json:"visibility" validate:"omitempty,visibility_"`
}

func (ua *UpdateAnnouncement) Validate(validate *validator.Validate) error {
	ua.Text = core.CleanString(ua.Text)
	ua.HyperLink = core.CleanString(ua.HyperLink)
	ua.Visibility = core.CleanString(ua.Visibility, true /* lower */)
	return validate.Struct(ua)
}

// QueryFilter narrows down announcement list results.
type QueryFilter struct {
	Visibility string `query:"visibility"`
}

var (
	visibilityTag  = "visibility_"
	visibilityText = "invalid visibility"
)

// InitValidators registers the notice domain validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(visibilityTag, visibilityValidation)
	core.RegisterCustomTranslation(validate, translator, visibilityTag, visibilityText)
}

func visibilityValidation(fl validator.FieldLevel) bool {
	_, err := ParseVisibility(fl.Field().String())
	return err == nil
}
