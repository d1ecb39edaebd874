package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core/notice"
)

type noticeApi struct {
	svc      notice.Service
	validate *validator.Validate
}

func registerNoticeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc notice.Service, validate *validator.Validate) {
	api := noticeApi{
		svc:      svc,
		validate: validate,
	}

	ng := g.Group("/notices")

	ag := ng.Group("", jwt, fullTokenMiddleware())

	// un-authed endpoint; only public announcements. Registered after the authed
	// sub-group because creating that group installs catch-all routes that would
	// otherwise shadow this path.
	ng.GET("", api.queryPublic)
	ag.GET("/all", api.queryAll)

	// admin endpoints
	ag.POST("", api.create, adminMiddleware())
	ag.PUT("/:id", api.update, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
}

func (api *noticeApi) queryPublic(ctx echo.Context) error {
	notices, err := api.svc.QueryPublic(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying public announcements")
	}
	if notices == nil {
		notices = []notice.Announcement{}
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *noticeApi) queryAll(ctx echo.Context) error {
	notices, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if notices == nil {
		notices = []notice.Announcement{}
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *noticeApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data notice.NewAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ann, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, ann)
}

func (api *noticeApi) update(ctx echo.Context) error {
	var data notice.UpdateAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ann, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ann)
}

func (api *noticeApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting announcements")
	}
	return ctx.NoContent(http.StatusNoContent)
}
