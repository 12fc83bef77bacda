package dummydb

import (
	"context"
	"time"

	"github.com/chuodev/chuo/core/principal"
)

type principalRepository struct {
	db *principalTable
}

var _ principal.Repository = (*principalRepository)(nil) // interface compliance check

func NewPrincipalRepository(db *DB) principal.Repository {
	return &principalRepository{db: db.principal}
}

func (repo *principalRepository) CreateAdmin(_ context.Context, p principal.Principal) (principal.Principal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.usernameTaken(principal.RoleAdmin, p.Username) {
		return principal.Principal{}, principal.ErrUsernameExists
	}
	repo.db.admins[p.ID] = &p
	return p, nil
}

func (repo *principalRepository) CreateStaff(_ context.Context, s principal.Staff) (principal.Staff, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.usernameTaken(principal.RoleStaff, s.Username) {
		return principal.Staff{}, principal.ErrUsernameExists
	}
	repo.db.staff[s.ID] = &s
	return s, nil
}

func (repo *principalRepository) CreateStudent(_ context.Context, s principal.Student) (principal.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.usernameTaken(principal.RoleStudent, s.Username) {
		return principal.Student{}, principal.ErrUsernameExists
	}
	repo.db.students[s.ID] = &s
	return s, nil
}

func (repo *principalRepository) GetPrincipal(_ context.Context, id string) (principal.Principal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.get(id)
}

func (repo *principalRepository) get(id string) (principal.Principal, error) {
	if p, ok := repo.db.admins[id]; ok {
		return *p, nil
	}
	if s, ok := repo.db.staff[id]; ok {
		return s.Principal, nil
	}
	if s, ok := repo.db.students[id]; ok {
		return s.Principal, nil
	}
	return principal.Principal{}, principal.ErrNotFound
}

func (repo *principalRepository) GetPrincipalByUsername(_ context.Context, role principal.Role, username string) (principal.Principal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch role {
	case principal.RoleAdmin:
		for _, p := range repo.db.admins {
			if p.Username == username {
				return *p, nil
			}
		}
	case principal.RoleStaff:
		for _, s := range repo.db.staff {
			if s.Username == username {
				return s.Principal, nil
			}
		}
	case principal.RoleStudent:
		for _, s := range repo.db.students {
			if s.Username == username {
				return s.Principal, nil
			}
		}
	}
	return principal.Principal{}, principal.ErrNotFound
}

func (repo *principalRepository) CheckUsernameUniqueness(_ context.Context, role principal.Role, username string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.usernameTaken(role, username) {
		return principal.ErrUsernameExists
	}
	return nil
}

func (repo *principalRepository) usernameTaken(role principal.Role, username string) bool {
	switch role {
	case principal.RoleAdmin:
		for _, p := range repo.db.admins {
			if p.Username == username {
				return true
			}
		}
	case principal.RoleStaff:
		for _, s := range repo.db.staff {
			if s.Username == username {
				return true
			}
		}
	case principal.RoleStudent:
		for _, s := range repo.db.students {
			if s.Username == username {
				return true
			}
		}
	}
	return false
}

func (repo *principalRepository) GetStaff(_ context.Context, tenantID, id string) (principal.Staff, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.staff[id]; ok && s.TenantID == tenantID {
		return *s, nil
	}
	return principal.Staff{}, principal.ErrNotFound
}

func (repo *principalRepository) GetStudent(_ context.Context, tenantID, id string) (principal.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.students[id]; ok && s.TenantID == tenantID {
		return *s, nil
	}
	return principal.Student{}, principal.ErrNotFound
}

func (repo *principalRepository) QueryStaff(_ context.Context, tenantID string) ([]principal.Staff, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	staff := make([]principal.Staff, 0, len(repo.db.staff))
	for _, s := range repo.db.staff {
		if s.TenantID == tenantID {
			staff = append(staff, *s)
		}
	}
	return staff, nil
}

func (repo *principalRepository) QueryStudents(_ context.Context, tenantID string) ([]principal.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]principal.Student, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		if s.TenantID == tenantID {
			students = append(students, *s)
		}
	}
	return students, nil
}

func (repo *principalRepository) CountStudentsByStatus(_ context.Context, tenantID string, status principal.StudentStatus) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, s := range repo.db.students {
		if s.TenantID == tenantID && s.Status == status {
			n++
		}
	}
	return n, nil
}

func (repo *principalRepository) SetPrincipalActive(_ context.Context, tenantID, id string, active bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if p, ok := repo.db.admins[id]; ok && p.TenantID == tenantID {
		p.IsActive = active
		return nil
	}
	if s, ok := repo.db.staff[id]; ok && s.TenantID == tenantID {
		s.IsActive = active
		return nil
	}
	if s, ok := repo.db.students[id]; ok && s.TenantID == tenantID {
		s.IsActive = active
		return nil
	}
	return principal.ErrNotFound
}

func (repo *principalRepository) SetStudentStatus(_ context.Context, tenantID, id string, status principal.StudentStatus) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if s, ok := repo.db.students[id]; ok && s.TenantID == tenantID {
		s.Status = status
		return nil
	}
	return principal.ErrNotFound
}

func (repo *principalRepository) UpdateCredential(_ context.Context, id string, hash []byte) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if p, ok := repo.db.admins[id]; ok {
		p.CredentialHash = hash
		return nil
	}
	if s, ok := repo.db.staff[id]; ok {
		s.CredentialHash = hash
		return nil
	}
	if s, ok := repo.db.students[id]; ok {
		s.CredentialHash = hash
		return nil
	}
	return principal.ErrNotFound
}

func (repo *principalRepository) SetLastLogin(_ context.Context, id string, t time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if p, ok := repo.db.admins[id]; ok {
		p.LastLogin = t
		return nil
	}
	if s, ok := repo.db.staff[id]; ok {
		s.LastLogin = t
		return nil
	}
	if s, ok := repo.db.students[id]; ok {
		s.LastLogin = t
		return nil
	}
	return principal.ErrNotFound
}
