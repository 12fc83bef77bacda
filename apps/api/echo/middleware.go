package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/principal"
)

// identityMiddleware runs the full identity verification exactly once per
// request, after the JWT middleware has parsed the token. The verified
// Identity becomes the only trusted source of tenant and subject identifiers
// downstream.
func identityMiddleware(verifier *auth.Verifier, audit core.AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			id, err := verifier.VerifyClaims(ctx.Request().Context(), claims)
			if err != nil {
				if auth.IsUnauthenticated(err) {
					audit.Record(ctx.Request().Context(), core.AuditEntry{
						TenantID:    claims.TenantID,
						PrincipalID: claims.Subject,
						Role:        claims.Role,
						Action:      "identity_rejected",
						Module:      "auth",
						NewData:     map[string]string{"reason": err.Error()},
						CreatedAt:   time.Now().UTC(),
					})
					return errUnauthorized
				}
				return errors.Wrap(err, "verifying identity")
			}
			ctx.Set(contextIdentityKey, id)
			return next(ctx)
		}
	}
}

// adminMiddleware restricts a route to the admin role.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return err
			}
			if id.Role == principal.RoleAdmin {
				return next(ctx)
			}
			return errHTTPForbidden
		}
	}
}
