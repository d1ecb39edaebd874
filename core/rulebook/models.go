package rulebook

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/adamsassn/membership/core"
)

// Rulebook is a versioned association rulebook PDF kept in object storage.
// At most one rulebook is active at a time.
type Rulebook struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ObjectKey   string    `json:"pdf_file"`
	IsActive    bool      `json:"is_active"`
	UploadedBy  string    `json:"uploaded_by,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"` // UTC
}

// NewRulebook contains information needed to publish a Rulebook.
type NewRulebook struct {
	Title       string `json:"title" form:"title" validate:"required"`
	Description string `json:"description" form:"description"`
	IsActive    bool   `json:"is_active" form:"is_active"`
}

func (nr *NewRulebook) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	return validate.Struct(nr)
}

// PDFFile is an uploaded rulebook document pending storage.
type PDFFile struct {
	Filename string
	Size     int64
	Content  io.Reader
}
