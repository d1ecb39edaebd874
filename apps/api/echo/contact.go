package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core/contact"
)

type contactApi struct {
	svc      contact.Service
	validate *validator.Validate
}

func registerContactAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc contact.Service, validate *validator.Validate) {
	api := contactApi{
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/contact")

	// admin endpoints
	ag := cg.Group("", jwt, fullTokenMiddleware(), adminMiddleware())

	// un-authed endpoint; registered after the admin sub-group because creating
	// that group installs catch-all routes that would otherwise shadow this path
	// TODO: rate limit; the form is open to the internet
	cg.POST("", api.submit)
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id/reply", api.reply)
	ag.DELETE("", api.destroyMultiple)
}

func (api *contactApi) submit(ctx echo.Context) error {
	var data contact.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting contact message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *contactApi) query(ctx echo.Context) error {
	filter := new(contact.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []contact.Message{})
	}
	filter.Clean()

	msgs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying contact messages")
	}
	if msgs == nil {
		msgs = []contact.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

// retrieve returns a message; opening it marks it read.
func (api *contactApi) retrieve(ctx echo.Context) error {
	msg, err := api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *contactApi) reply(ctx echo.Context) error {
	var data contact.Reply
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Reply")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.SendReply(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *contactApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting contact messages")
	}
	return ctx.NoContent(http.StatusNoContent)
}
