package auth

import (
	"errors"

	"github.com/chuodev/chuo/core/principal"
)

var (
	// Forbidden failures: surfaced as 403 and audit-logged as security events.
	ErrScopeViolation  = errors.New("scope violation")
	ErrActionForbidden = errors.New("action not allowed for role")
)

// Action names an operation gated by the role policy table.
type Action string

const (
	ActionMarkAttendance  Action = "attendance:mark"
	ActionScanSelf        Action = "attendance:scan_self"
	ActionReadAttendance  Action = "attendance:read"
	ActionManageFollowUps Action = "attendance:followups"
	ActionApplyPayment    Action = "fees:apply_payment"
	ActionReadFees        Action = "fees:read"
	ActionComputeSalary   Action = "salary:compute"
	ActionReadDashboard   Action = "dashboard:read"
	ActionManagePrincipal Action = "principal:manage"
)

// rolePolicy is the single allowed-operations table per role. Endpoints never
// compare role strings themselves.
var rolePolicy = map[principal.Role]map[Action]bool{
	principal.RoleAdmin: {
		ActionMarkAttendance:  true,
		ActionReadAttendance:  true,
		ActionManageFollowUps: true,
		ActionApplyPayment:    true,
		ActionReadFees:        true,
		ActionComputeSalary:   true,
		ActionReadDashboard:   true,
		ActionManagePrincipal: true,
	},
	principal.RoleStaff: {
		ActionMarkAttendance:  true,
		ActionScanSelf:        true,
		ActionReadAttendance:  true,
		ActionManageFollowUps: true,
		ActionApplyPayment:    true,
		ActionReadFees:        true,
	},
	principal.RoleStudent: {
		ActionReadAttendance: true,
		ActionApplyPayment:   true,
		ActionReadFees:       true,
	},
}

// Allowed consults the policy table.
func Allowed(role principal.Role, action Action) bool {
	return rolePolicy[role][action]
}

// EffectiveScope is the tenant/subject confinement every downstream query and
// write must carry.
type EffectiveScope struct {
	TenantID    string
	PrincipalID string
	Role        principal.Role
	SubjectID   string // pinned to the student's own id for the Student role
}

// Scope compares any caller-supplied tenant/subject identifiers against the
// verified identity and injects the identity's own values where absent. It is
// pure and stateless; it must run after Verify and before any data access.
//
// For the Student role the subject is structurally pinned to the student's
// own id: no query parameter can widen it.
func Scope(id Identity, action Action, tenantOverride, subjectOverride string) (EffectiveScope, error) {
	if !Allowed(id.Role, action) {
		return EffectiveScope{}, ErrActionForbidden
	}
	if tenantOverride != "" && tenantOverride != id.TenantID {
		return EffectiveScope{}, ErrScopeViolation
	}

	scope := EffectiveScope{
		TenantID:    id.TenantID,
		PrincipalID: id.PrincipalID,
		Role:        id.Role,
	}

	if id.Role == principal.RoleStudent {
		if subjectOverride != "" && subjectOverride != id.StudentID {
			return EffectiveScope{}, ErrScopeViolation
		}
		scope.SubjectID = id.StudentID
		return scope, nil
	}

	scope.SubjectID = subjectOverride
	return scope, nil
}

// IsForbidden reports whether err belongs to the guard's failure taxonomy.
func IsForbidden(err error) bool {
	return err == ErrScopeViolation || err == ErrActionForbidden
}
