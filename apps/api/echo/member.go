package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/member"
	"github.com/attendly/attendly/core/role"
)

var errNoPermsToSetRole = "not enough rights to set this role"

type memberApi struct {
	svc      *member.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerMemberAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc *member.Service,
	validate *validator.Validate,
) {
	api := memberApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	// un-authed endpoints
	g.POST("/users/login", api.login)

	// authed endpoints
	ag := g.Group("", jwt)
	ag.POST("/users/token-refresh", api.refreshToken)
	ag.GET("/permissions", api.permissions)

	mg := ag.Group("/members")
	mg.GET("", api.query, roleMiddleware(auth, role.CanView))
	mg.POST("", api.create, roleMiddleware(auth, role.CanManageMembers))
	mg.GET("/me", api.me)
	mg.PUT("/me/password", api.resetPassword)
	mg.GET("/:id", api.retrieve, roleMiddleware(auth, role.CanView))

	pg := ag.Group("/policies/:org")
	pg.GET("", api.retrievePolicy, roleMiddleware(auth, role.CanView))
	pg.PUT("", api.updatePolicy, roleMiddleware(auth, role.CanManageMembers))
}

// sameOrg reports whether actor may act on the given organization.
func sameOrg(actor member.Member, orgID string) bool {
	return actor.Role == role.PlatformOwner || actor.OrganizationID == orgID
}

// Handlers

func (api *memberApi) login(ctx echo.Context) error {
	var creds member.Credentials
	if err := bindAndValidate(ctx, api.validate, &creds); err != nil {
		return err
	}
	token, err := api.auth.login(ctx, creds)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *memberApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *memberApi) permissions(ctx echo.Context) error {
	m, err := api.auth.contextMember(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, role.Of(m.Role))
}

func (api *memberApi) me(ctx echo.Context) error {
	m, err := api.auth.contextMember(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *memberApi) query(ctx echo.Context) error {
	actor, err := api.auth.contextMember(ctx)
	if err != nil {
		return err
	}
	var filter member.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []member.Member{})
	}
	if actor.Role != role.PlatformOwner {
		filter.OrganizationID = actor.OrganizationID
	}

	members, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *memberApi) create(ctx echo.Context) error {
	actor, err := api.auth.contextMember(ctx)
	if err != nil {
		return err
	}
	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if data.OrganizationID == "" {
		data.OrganizationID = actor.OrganizationID
	}
	if !sameOrg(actor, core.CleanString(data.OrganizationID)) {
		return errHttpForbidden
	}
	// actor cannot create a member outranking them
	if r := role.Parse(data.Role); r.IsKnown() && r.Outranks(actor.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	m, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	actor, err := api.auth.contextMember(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if !sameOrg(actor, m.OrganizationID) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *memberApi) resetPassword(ctx echo.Context) error {
	actor, err := api.auth.contextMember(ctx)
	if err != nil {
		return err
	}
	var data member.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), actor.ID, data); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) retrievePolicy(ctx echo.Context) error {
	actor, err := api.auth.contextMember(ctx)
	if err != nil {
		return err
	}
	orgID := ctx.Param("org")
	if !sameOrg(actor, orgID) {
		return errHttpForbidden
	}
	p, err := api.svc.Policy(ctx.Request().Context(), orgID)
	if err != nil {
		return errors.Wrap(err, "loading policy")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *memberApi) updatePolicy(ctx echo.Context) error {
	actor, err := api.auth.contextMember(ctx)
	if err != nil {
		return err
	}
	var data member.UpdatePolicy
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePolicy")
	}
	data.OrganizationID = ctx.Param("org")
	if !sameOrg(actor, data.OrganizationID) {
		return errHttpForbidden
	}
	p, err := api.svc.SetPolicy(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}
