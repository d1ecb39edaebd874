package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core/rulebook"
)

type rulebookApi struct {
	svc      rulebook.Service
	validate *validator.Validate
}

func registerRulebookAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc rulebook.Service, validate *validator.Validate) {
	api := rulebookApi{
		svc:      svc,
		validate: validate,
	}

	// un-authed endpoint; the active rulebook is public
	g.GET("/rulebook", api.active)

	// admin endpoints
	ag := g.Group("/rulebooks", jwt, fullTokenMiddleware(), adminMiddleware())
	ag.GET("", api.query)
	ag.POST("", api.upload)
	ag.PUT("/:id/activate", api.activate)
	ag.DELETE("", api.destroyMultiple)
}

func (api *rulebookApi) active(ctx echo.Context) error {
	rb, url, err := api.svc.ActiveURL(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ActiveRulebookResponse{Rulebook: rb, URL: url})
}

func (api *rulebookApi) query(ctx echo.Context) error {
	rbs, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying rulebooks")
	}
	if rbs == nil {
		rbs = []rulebook.Rulebook{}
	}
	return ctx.JSON(http.StatusOK, rbs)
}

func (api *rulebookApi) upload(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data rulebook.NewRulebook
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRulebook")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	var file *rulebook.PDFFile
	if fh, ferr := ctx.FormFile("pdf_file"); ferr == nil {
		f, oerr := fh.Open()
		if oerr != nil {
			return errors.Wrap(oerr, "opening uploaded file")
		}
		file = &rulebook.PDFFile{Filename: fh.Filename, Size: fh.Size, Content: f}
	}

	rb, err := api.svc.Upload(ctx.Request().Context(), data, file, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rb)
}

func (api *rulebookApi) activate(ctx echo.Context) error {
	var data ActivateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivateRequest")
	}

	active := true
	if data.Active != nil {
		active = *data.Active
	}
	rb, err := api.svc.SetActive(ctx.Request().Context(), ctx.Param("id"), active)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rb)
}

func (api *rulebookApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting rulebooks")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	ActiveRulebookResponse struct {
		rulebook.Rulebook
		URL string `json:"url"`
	}

	ActivateRequest struct {
		Active *bool `json:"active"`
	}
)
