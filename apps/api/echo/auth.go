package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
	"github.com/attendly/attendly/core/role"
)

const (
	contextTokenKey  = "memberToken"
	contextMemberKey = "member"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt   int64     `json:"oriat,omitempty"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Role           role.Role `json:"role"`
	OrganizationID string    `json:"org,omitempty"`
}

type authenticator struct {
	conf      *core.Config
	svc       *member.Service
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config, svc *member.Service) *authenticator {
	return &authenticator{
		conf: conf,
		svc:  svc,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (a *authenticator) memberClaims(m member.Member, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   m.ID,
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:   oriat,
		Name:           m.Name,
		Email:          m.Email,
		Role:           m.Role,
		OrganizationID: m.OrganizationID,
	}
}

// GenerateToken generates a signed JWT token string representing the member's Claims.
func (a *authenticator) GenerateToken(m member.Member, origIat ...int64) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, a.memberClaims(m, origIat...))

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextMember loads the authenticated member once per request.
// Deactivated members are refused even while their token is still valid.
func (a *authenticator) contextMember(ctx echo.Context) (member.Member, error) {
	if m, ok := ctx.Get(contextMemberKey).(member.Member); ok {
		return m, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return member.Member{}, err
	}
	m, err := a.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return member.Member{}, errUnauthorized
		}
		return member.Member{}, errors.Wrap(err, "finding member by ID")
	}
	if !m.IsActive {
		return member.Member{}, errAccountDeactivated
	}
	ctx.Set(contextMemberKey, m)
	return m, nil
}

func (a *authenticator) contextActor(ctx echo.Context) (attendance.Actor, error) {
	m, err := a.contextMember(ctx)
	if err != nil {
		return attendance.Actor{}, err
	}
	return attendance.Actor{UserID: m.ID, Name: m.Name, Role: m.Role, OrganizationID: m.OrganizationID}, nil
}

func (a *authenticator) login(ctx echo.Context, creds member.Credentials) (string, error) {
	m, err := a.svc.Authenticate(ctx.Request().Context(), creds)
	switch {
	case errors.Is(err, member.ErrInvalidCredentials):
		return "", errAuthenticationFailed
	case errors.Is(err, member.ErrInactive):
		return "", errAccountDeactivated
	case err != nil:
		return "", errors.Wrap(err, "authenticating")
	}
	return a.GenerateToken(m)
}

func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	m, err := a.contextMember(ctx)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	return a.GenerateToken(m, claims.OrigIssuedAt)
}
