package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
	"github.com/adamsassn/membership/core/bulkmail"
	"github.com/adamsassn/membership/core/member"
)

type bulkMailApi struct {
	runner    *bulkmail.Runner
	memberSvc member.Service
	validate  *validator.Validate
}

func registerBulkMailAPI(g *echo.Group, jwt echo.MiddlewareFunc, runner *bulkmail.Runner, memberSvc member.Service, validate *validator.Validate) {
	api := bulkMailApi{
		runner:    runner,
		memberSvc: memberSvc,
		validate:  validate,
	}

	bg := g.Group("/bulk-email", jwt, fullTokenMiddleware(), adminMiddleware())
	bg.POST("", api.enqueue)
	bg.GET("/:id", api.status)
	bg.DELETE("/:id", api.cancel)
}

func (api *bulkMailApi) enqueue(ctx echo.Context) error {
	var data BulkEmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkEmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	category, err := member.ParseCategory(data.Category)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "category", Error: err.Error()})
	}

	// only approved members of the category receive the email
	members, err := api.memberSvc.Query(ctx.Request().Context(), &member.QueryFilter{
		Status:   string(member.StatusApproved),
		Category: string(category),
	}, nil)
	if err != nil {
		return errors.Wrap(err, "querying recipients")
	}

	recipients := make([]mail.Address, 0, len(members))
	for _, mbr := range members {
		recipients = append(recipients, mail.Address{Name: mbr.FullName, Address: mbr.Email})
	}

	id, err := api.runner.Enqueue(string(category), data.Subject, data.Message, recipients)
	if err != nil {
		return err
	}

	job, err := api.runner.Get(id)
	if err != nil {
		return errors.Wrap(err, "finding job")
	}
	return ctx.JSON(http.StatusAccepted, job)
}

func (api *bulkMailApi) status(ctx echo.Context) error {
	job, err := api.runner.Get(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, job)
}

func (api *bulkMailApi) cancel(ctx echo.Context) error {
	if err := api.runner.Cancel(ctx.Param("id")); err != nil {
		return err
	}
	job, err := api.runner.Get(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding job")
	}
	return ctx.JSON(http.StatusOK, job)
}

type BulkEmailRequest struct {
	Category string `json:"category" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

func (br *BulkEmailRequest) Validate(validate *validator.Validate) error {
	br.Category = core.CleanString(br.Category)
	br.Subject = core.CleanString(br.Subject)
	br.Message = core.CleanString(br.Message)
	return validate.Struct(br)
}
