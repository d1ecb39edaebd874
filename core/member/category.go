package member

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/adamsassn/membership/core"
)

// CategoryChangeRequest tracks a member's request to move to another
// membership category. A member may have at most one pending request.
type CategoryChangeRequest struct {
	ID                string    `json:"id"`
	MemberID          string    `json:"member_id"`
	CurrentCategory   Category  `json:"current_category"`
	RequestedCategory Category  `json:"requested_category"`
	Status            Status    `json:"request_status"`
	AdminRemarks      string    `json:"admin_remarks,omitempty"`
	RequestedAt       time.Time `json:"request_date"`  // UTC
	DecidedAt         time.Time `json:"decision_date"` // UTC; zero until decided
}

func (r *CategoryChangeRequest) IsPending() bool { return r.Status == StatusPending }

// NewCategoryRequest contains information needed to open a CategoryChangeRequest.
type NewCategoryRequest struct {
	RequestedCategory string `json:"requested_category" validate:"required,category_"`
}

func (ncr *NewCategoryRequest) Validate(validate *validator.Validate) error {
	ncr.RequestedCategory = core.CleanString(ncr.RequestedCategory)
	return validate.Struct(ncr)
}

// CategoryRequestFilter narrows down request list results; fields combine with AND.
type CategoryRequestFilter struct {
	MemberID string `query:"member_id"`
	Status   string `query:"status"`
}

func (f *CategoryRequestFilter) Clean() {
	f.Status = core.CleanString(f.Status, true /* lower */)
}
