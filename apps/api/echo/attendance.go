package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/attendly/attendly/core/attendance"
)

type attendanceApi struct {
	svc      *attendance.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc *attendance.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	ag := g.Group("/attendance", jwt)
	ag.POST("/adjustments", api.submit)
	ag.POST("/scans", api.recordScan, roleMiddleware(auth, isPlatformOwner))

	sg := ag.Group("/sessions/:session")
	sg.GET("/trail", api.trail)
	sg.GET("/dates/:date/roster", api.roster)
	sg.GET("/dates/:date/users/:user", api.state)
}

func dateParam(ctx echo.Context) (attendance.Date, error) {
	date, err := attendance.ParseDate(ctx.Param("date"))
	if err != nil {
		return attendance.Date{}, echo.NewHTTPError(http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}

// Handlers

func (api *attendanceApi) submit(ctx echo.Context) error {
	actor, err := api.auth.contextActor(ctx)
	if err != nil {
		return err
	}
	var data AdjustmentRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}

	rec, err := api.svc.Submit(ctx.Request().Context(), actor, data.newAdjustment())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) recordScan(ctx echo.Context) error {
	var data ScanRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if err := api.svc.RecordScan(ctx.Request().Context(), data.baseRecord()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) state(ctx echo.Context) error {
	actor, err := api.auth.contextActor(ctx)
	if err != nil {
		return err
	}
	date, err := dateParam(ctx)
	if err != nil {
		return err
	}

	key := attendance.NewKey(ctx.Param("session"), date, ctx.Param("user"))
	state, err := api.svc.ViewState(ctx.Request().Context(), actor, key)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, state)
}

func (api *attendanceApi) roster(ctx echo.Context) error {
	actor, err := api.auth.contextActor(ctx)
	if err != nil {
		return err
	}
	date, err := dateParam(ctx)
	if err != nil {
		return err
	}
	var query RosterQuery
	if err := bindAndValidate(ctx, api.validate, &query); err != nil {
		return err
	}

	states, err := api.svc.Roster(ctx.Request().Context(), actor, ctx.Param("session"), date, query.UserIDs, query.ManualOnly)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, states)
}

func (api *attendanceApi) trail(ctx echo.Context) error {
	actor, err := api.auth.contextActor(ctx)
	if err != nil {
		return err
	}
	var query TrailQuery
	if err := bindAndValidate(ctx, api.validate, &query); err != nil {
		return err
	}
	var date *attendance.Date
	if query.Date != "" {
		d, _ := attendance.ParseDate(query.Date)
		date = &d
	}

	trail, err := api.svc.Trail(ctx.Request().Context(), actor, ctx.Param("session"), date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attendance.FilterTrail(trail, query.filter(), attendance.NowFunc()))
}
