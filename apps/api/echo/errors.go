package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "member not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	kindStatus = map[attendance.Kind]int{
		attendance.KindPermissionDenied:       http.StatusForbidden,
		attendance.KindInvalidReason:          http.StatusBadRequest,
		attendance.KindNoOpRejected:           http.StatusConflict,
		attendance.KindInvalidLateMinutes:     http.StatusBadRequest,
		attendance.KindCrossOrgForbidden:      http.StatusForbidden,
		attendance.KindStaleTargetDate:        http.StatusUnprocessableEntity,
		attendance.KindInvalidStatus:          http.StatusBadRequest,
		attendance.KindInvalidRecord:          http.StatusBadRequest,
		attendance.KindConcurrentModification: http.StatusConflict,
		attendance.KindNotFound:               http.StatusNotFound,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var attErr *attendance.Error
		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if errors.As(err, &attErr) && attErr.Kind != attendance.KindUnknown {
				code = kindStatus[attErr.Kind]
				message = echo.Map{"error": attErr.Msg, "code": attErr.Kind.Code()}
				break
			}
			if errors.Is(err, member.ErrNotFound) {
				code = http.StatusNotFound
				message = errHttpNotFound.Message
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var m member.Member
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				m.ID = claims.Subject
				m.Name = claims.Name
				m.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), m)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
