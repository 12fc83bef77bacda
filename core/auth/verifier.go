package auth

import (
	"context"
	"errors"

	"github.com/chuodev/chuo/core/principal"
)

var (
	// Unauthenticated failures. All of them map to a 401 at the edge;
	// the distinction is for logs and tests, not for callers.
	ErrTokenInvalid      = errors.New("invalid token")
	ErrClaimIncomplete   = errors.New("token claims incomplete")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrPrincipalInactive = errors.New("principal deactivated")
	ErrRoleMismatch      = errors.New("role does not match records")
	ErrTenantMismatch    = errors.New("tenant does not match records")
)

// Identity is a verified caller. It is the only trusted source of tenant and
// subject identifiers; everything a request supplies is checked against it.
type Identity struct {
	PrincipalID string
	TenantID    string
	Role        principal.Role
	StudentID   string // set when Role == RoleStudent
}

// Verifier validates session credentials against the principal store. Every
// request passes through Verify exactly once before any tenant data is
// touched.
type Verifier struct {
	tokens     *TokenManager
	principals *principal.Service
}

func NewVerifier(tokens *TokenManager, principals *principal.Service) *Verifier {
	return &Verifier{tokens: tokens, principals: principals}
}

// Verify decodes the token, checks the claim set for completeness, then
// re-fetches the principal to confirm it still exists, is active and matches
// the claimed role and tenant. Read-only.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := v.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	return v.VerifyClaims(ctx, claims)
}

// VerifyClaims runs the identity checks on an already-parsed claim set
// (the HTTP layer parses tokens in middleware).
func (v *Verifier) VerifyClaims(ctx context.Context, claims *Claims) (Identity, error) {
	role := principal.Role(claims.Role)
	if claims.Subject == "" || claims.TenantID == "" || !role.Valid() {
		return Identity{}, ErrClaimIncomplete
	}
	if role == principal.RoleStudent && claims.StudentID == "" {
		return Identity{}, ErrClaimIncomplete
	}

	p, err := v.principals.GetByID(ctx, claims.Subject)
	if err != nil {
		if err == principal.ErrNotFound {
			return Identity{}, ErrPrincipalNotFound
		}
		return Identity{}, err
	}
	if !p.IsActive {
		return Identity{}, ErrPrincipalInactive
	}
	if p.Role != role {
		return Identity{}, ErrRoleMismatch
	}
	if p.TenantID != claims.TenantID {
		return Identity{}, ErrTenantMismatch
	}

	return Identity{
		PrincipalID: p.ID,
		TenantID:    p.TenantID,
		Role:        p.Role,
		StudentID:   claims.StudentID,
	}, nil
}

// IsUnauthenticated reports whether err belongs to the verifier's failure
// taxonomy.
func IsUnauthenticated(err error) bool {
	switch err {
	case ErrTokenInvalid, ErrClaimIncomplete, ErrPrincipalNotFound, ErrPrincipalInactive, ErrRoleMismatch, ErrTenantMismatch:
		return true
	}
	return false
}
