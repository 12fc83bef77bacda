package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/fees"
	"github.com/chuodev/chuo/core/principal"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHTTPForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHTTPNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// conflictResponse carries the existing record on duplicate-marking and
// already-checked-out conflicts so clients can reconcile instead of retrying.
type conflictResponse struct {
	Error    string            `json:"error"`
	Existing attendance.Record `json:"existing"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called to gracefully shutdown the
// Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
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
		case *attendance.DuplicateError:
			code = http.StatusConflict
			message = conflictResponse{Error: origErr.Error(), Existing: origErr.Existing}
		case *attendance.CheckedOutError:
			code = http.StatusConflict
			message = conflictResponse{Error: origErr.Error(), Existing: origErr.Existing}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
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
			switch {
			case auth.IsUnauthenticated(cause):
				code = http.StatusUnauthorized
				message = errUnauthorized.Message
			case auth.IsForbidden(cause):
				code = http.StatusForbidden
				message = errHTTPForbidden.Message
			case isNotFound(cause):
				code = http.StatusNotFound
				message = errHTTPNotFound.Message
			case cause == fees.ErrInactiveSubject:
				code = http.StatusUnprocessableEntity
				message = cause.Error()
			case cause == fees.ErrReceiptExists:
				code = http.StatusConflict
				message = cause.Error()
			case cause == attendance.ErrIdentityMismatch || cause == attendance.ErrNotFollowUpCreator:
				code = http.StatusForbidden
				message = cause.Error()
			case cause == attendance.ErrNoAbsenceRecorded:
				code = http.StatusUnprocessableEntity
				message = cause.Error()
			case cause == principal.ErrUsernameExists:
				code = http.StatusConflict
				message = cause.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var prin principal.Principal
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					prin.ID = claims.Subject
					prin.Username = claims.Username
				}
				logger.Error(msg, errors.Wrap(err, msg), prin)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
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

func isNotFound(err error) bool {
	switch err {
	case principal.ErrNotFound,
		attendance.ErrRecordNotFound,
		attendance.ErrFollowUpNotFound,
		attendance.ErrSubjectNotFound,
		fees.ErrStudentNotFound:
		return true
	}
	return false
}
