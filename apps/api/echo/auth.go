package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/principal"
)

const (
	contextTokenKey    = "principalToken"
	contextIdentityKey = "identity"
)

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    conf.SecretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(auth.Claims),
	}
}

// authenticate checks credentials for the given role and returns a fresh
// claim set on success.
func authenticate(ctx echo.Context, role principal.Role, uname, pwd string, opts *Options) (*auth.Claims, error) {
	prin, err := opts.PrincipalSvc.GetByUsername(ctx.Request().Context(), role, uname)
	if err != nil {
		if errors.Cause(err) == principal.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding principal by username")
	}
	if err = prin.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !prin.IsActive {
		return nil, errAccountDeactivated
	}
	prin, err = opts.PrincipalSvc.SetLastLogin(ctx.Request().Context(), prin)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return opts.Tokens.Claims(prin), nil
}

func getContextClaims(ctx echo.Context) (*auth.Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*auth.Claims); ok {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}

func getContextIdentity(ctx echo.Context) (auth.Identity, error) {
	if id, ok := ctx.Get(contextIdentityKey).(auth.Identity); ok {
		return id, nil
	}
	return auth.Identity{}, errUnauthorized
}

// getScope runs the role policy and tenant confinement checks for an action.
// Caller-supplied tenant/subject identifiers come from the query string so
// they can never widen the verified identity.
func getScope(ctx echo.Context, action auth.Action) (auth.EffectiveScope, error) {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return auth.EffectiveScope{}, err
	}
	tenantOverride := ctx.QueryParam("tenant_id")
	subjectOverride := ctx.QueryParam("subject_id")
	return auth.Scope(id, action, tenantOverride, subjectOverride)
}

// getScopeForSubject is getScope for routes that name their subject in the
// path. The path id goes through the same confinement as a query override, so
// a student naming anyone but themselves fails before any data access.
func getScopeForSubject(ctx echo.Context, action auth.Action, subjectID string) (auth.EffectiveScope, error) {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return auth.EffectiveScope{}, err
	}
	return auth.Scope(id, action, ctx.QueryParam("tenant_id"), subjectID)
}

func refreshToken(ctx echo.Context, opts *Options) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	prin, err := opts.PrincipalSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return "", errors.Wrap(err, "finding principal by ID")
	}

	// check if principal is still active
	if !prin.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	if opts.Tokens.RefreshExpired(claims) {
		return "", errRefreshExpired
	}

	newClaims := opts.Tokens.Claims(prin, claims.OrigIssuedAt)
	token, err := opts.Tokens.Generate(newClaims)
	return token, errors.Wrap(err, "generating token")
}
