package principal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chuodev/chuo/core"
)

var (
	// errors
	ErrNotFound       = errors.New("principal not found")
	ErrUsernameExists = errors.New("a principal with this username already exists")
	ErrInactive       = errors.New("principal is deactivated")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateAdmin(ctx context.Context, p Principal) (Principal, error)
		CreateStaff(ctx context.Context, s Staff) (Staff, error)
		CreateStudent(ctx context.Context, s Student) (Student, error)

		// GetPrincipal fetches by id alone; callers compare tenant/role
		// against their own scope.
		GetPrincipal(ctx context.Context, id string) (Principal, error)
		// GetPrincipalByUsername looks up within a role's credential space.
		GetPrincipalByUsername(ctx context.Context, role Role, username string) (Principal, error)
		CheckUsernameUniqueness(ctx context.Context, role Role, username string) error

		GetStaff(ctx context.Context, tenantID, id string) (Staff, error)
		GetStudent(ctx context.Context, tenantID, id string) (Student, error)
		QueryStaff(ctx context.Context, tenantID string) ([]Staff, error)
		QueryStudents(ctx context.Context, tenantID string) ([]Student, error)
		CountStudentsByStatus(ctx context.Context, tenantID string, status StudentStatus) (int, error)

		SetPrincipalActive(ctx context.Context, tenantID, id string, active bool) error
		SetStudentStatus(ctx context.Context, tenantID, id string, status StudentStatus) error
		UpdateCredential(ctx context.Context, id string, hash []byte) error
		SetLastLogin(ctx context.Context, id string, t time.Time) error
	}

	Service struct {
		repo  Repository
		audit core.AuditRecorder
	}
)

func NewService(repo Repository, audit core.AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit}
}

func (svc *Service) checkUniqueness(role Role, uname string) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), role, uname); err != nil {
		if err == ErrUsernameExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) newPrincipal(tenantID string, role Role, name, uname, email, pwd string) (Principal, error) {
	now := nowFunc().UTC()
	p := Principal{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Role:      role,
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.SetPassword(pwd); err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (svc *Service) CreateStaff(ctx context.Context, actor Principal, ns NewStaff) (Staff, error) {
	p, err := svc.newPrincipal(ns.TenantID, RoleStaff, ns.Name, ns.Username, ns.Email, ns.Password)
	if err != nil {
		return Staff{}, err
	}
	stf, err := svc.repo.CreateStaff(ctx, Staff{Principal: p, Salary: ns.Salary})
	if err != nil {
		return Staff{}, err
	}
	svc.audit.Record(ctx, core.AuditEntry{
		TenantID:    actor.TenantID,
		PrincipalID: actor.ID,
		Role:        actor.Role.String(),
		Action:      "create",
		Module:      "staff",
		EntityID:    stf.ID,
		NewData:     stf,
		CreatedAt:   nowFunc().UTC(),
	})
	return stf, nil
}

func (svc *Service) CreateStudent(ctx context.Context, actor Principal, ns NewStudent) (Student, error) {
	p, err := svc.newPrincipal(ns.TenantID, RoleStudent, ns.Name, ns.Username, ns.Email, ns.Password)
	if err != nil {
		return Student{}, err
	}
	std := Student{
		Principal:     p,
		AdmissionDate: core.DateOf(ns.AdmissionDate),
		TotalFees:     ns.TotalFees,
		DueAmount:     ns.TotalFees,
		Status:        StudentActive,
	}
	std, err = svc.repo.CreateStudent(ctx, std)
	if err != nil {
		return Student{}, err
	}
	svc.audit.Record(ctx, core.AuditEntry{
		TenantID:    actor.TenantID,
		PrincipalID: actor.ID,
		Role:        actor.Role.String(),
		Action:      "create",
		Module:      "student",
		EntityID:    std.ID,
		NewData:     std,
		CreatedAt:   nowFunc().UTC(),
	})
	return std, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Principal, error) {
	return svc.repo.GetPrincipal(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, role Role, uname string) (Principal, error) {
	return svc.repo.GetPrincipalByUsername(ctx, role, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetStaff(ctx context.Context, tenantID, id string) (Staff, error) {
	return svc.repo.GetStaff(ctx, tenantID, id)
}

func (svc *Service) GetStudent(ctx context.Context, tenantID, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, tenantID, id)
}

func (svc *Service) QueryStaff(ctx context.Context, tenantID string) ([]Staff, error) {
	return svc.repo.QueryStaff(ctx, tenantID)
}

func (svc *Service) QueryStudents(ctx context.Context, tenantID string) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, tenantID)
}

func (svc *Service) CountStudentsByStatus(ctx context.Context, tenantID string, status StudentStatus) (int, error) {
	return svc.repo.CountStudentsByStatus(ctx, tenantID, status)
}

// Deactivate soft-removes a principal; records are never hard-deleted.
func (svc *Service) Deactivate(ctx context.Context, actor Principal, tenantID, id string) error {
	if err := svc.repo.SetPrincipalActive(ctx, tenantID, id, false); err != nil {
		return err
	}
	svc.audit.Record(ctx, core.AuditEntry{
		TenantID:    actor.TenantID,
		PrincipalID: actor.ID,
		Role:        actor.Role.String(),
		Action:      "deactivate",
		Module:      "principal",
		EntityID:    id,
		CreatedAt:   nowFunc().UTC(),
	})
	return nil
}

// RotateCredential replaces a principal's password hash.
func (svc *Service) RotateCredential(ctx context.Context, p Principal, newPwd string) error {
	if err := p.SetPassword(newPwd); err != nil {
		return err
	}
	return svc.repo.UpdateCredential(ctx, p.ID, p.CredentialHash)
}

func (svc *Service) SetLastLogin(ctx context.Context, p Principal) (Principal, error) {
	now := nowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, p.ID, now); err != nil {
		return Principal{}, err
	}
	p.LastLogin = now
	return p, nil
}
