package contact

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/adamsassn/membership/core"
)

// Message statuses
type Status string

const (
	StatusNew     Status = "new"
	StatusRead    Status = "read"
	StatusReplied Status = "replied"
)

var AllStatuses = []Status{StatusNew, StatusRead, StatusReplied}

func ParseStatus(s string) (Status, error) {
	status := Status(core.CleanString(s, true /* lower */))
	for _, st := range AllStatuses {
		if status == st {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

// Message is a contact form submission.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"message"`
	Status    Status    `json:"status"`
	Reply     string    `json:"reply,omitempty"`
	RepliedAt time.Time `json:"replied_at"` // UTC; zero until replied
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewMessage contains information needed to submit a contact Message.
type NewMessage struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Subject = core.CleanString(nm.Subject)
	nm.Message = core.CleanString(nm.Message)
	return validate.Struct(nm)
}

// Reply contains an admin's response to a Message.
type Reply struct {
	Reply string `json:"reply" validate:"required"`
}

func (r *Reply) Validate(validate *validator.Validate) error {
	r.Reply = core.CleanString(r.Reply)
	return validate.Struct(r)
}

// QueryFilter narrows down message list results.
type QueryFilter struct {
	Status string `query:"status"`
}

func (f *QueryFilter) Clean() {
	f.Status = core.CleanString(f.Status, true /* lower */)
}
