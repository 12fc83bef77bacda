package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core/principal"
)

type principalRepository struct {
	db *sqlx.DB
}

var _ principal.Repository = (*principalRepository)(nil) // interface compliance check

func NewPrincipalRepository(db *sqlx.DB) principal.Repository {
	return &principalRepository{db: db}
}

type principalRow struct {
	ID             string       `db:"id"`
	TenantID       string       `db:"tenant_id"`
	Role           string       `db:"role"`
	Name           string       `db:"name"`
	Username       string       `db:"username"`
	Email          string       `db:"email"`
	IsActive       bool         `db:"is_active"`
	CredentialHash []byte       `db:"credential_hash"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	LastLogin      sql.NullTime `db:"last_login"`
}

func (r principalRow) toDomain() principal.Principal {
	p := principal.Principal{
		ID:             r.ID,
		TenantID:       r.TenantID,
		Role:           principal.Role(r.Role),
		Name:           r.Name,
		Username:       r.Username,
		Email:          r.Email,
		IsActive:       r.IsActive,
		CredentialHash: r.CredentialHash,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		p.LastLogin = r.LastLogin.Time.UTC()
	}
	return p
}

const insertPrincipalSQL = `
INSERT INTO principals (id, tenant_id, role, name, username, email, is_active, credential_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func insertPrincipal(ctx context.Context, tx *sqlx.Tx, p principal.Principal) error {
	_, err := tx.ExecContext(ctx, insertPrincipalSQL,
		p.ID, p.TenantID, p.Role.String(), p.Name, p.Username, p.Email, p.IsActive, p.CredentialHash, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return principal.ErrUsernameExists
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (repo *principalRepository) CreateAdmin(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return principal.Principal{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertPrincipal(ctx, tx, p); err != nil {
		return principal.Principal{}, err
	}
	return p, tx.Commit()
}

func (repo *principalRepository) CreateStaff(ctx context.Context, s principal.Staff) (principal.Staff, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return principal.Staff{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertPrincipal(ctx, tx, s.Principal); err != nil {
		return principal.Staff{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO staff (principal_id, salary_type, salary_rate) VALUES ($1, $2, $3)`,
		s.ID, string(s.Salary.Type), s.Salary.Rate,
	)
	if err != nil {
		return principal.Staff{}, err
	}
	return s, tx.Commit()
}

func (repo *principalRepository) CreateStudent(ctx context.Context, s principal.Student) (principal.Student, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return principal.Student{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertPrincipal(ctx, tx, s.Principal); err != nil {
		return principal.Student{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO students (principal_id, admission_date, total_fees, paid_amount, due_amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.AdmissionDate, s.TotalFees, s.PaidAmount, s.DueAmount, string(s.Status),
	)
	if err != nil {
		return principal.Student{}, err
	}
	return s, tx.Commit()
}

func (repo *principalRepository) GetPrincipal(ctx context.Context, id string) (principal.Principal, error) {
	var row principalRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM principals WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return principal.Principal{}, principal.ErrNotFound
	}
	if err != nil {
		return principal.Principal{}, err
	}
	return row.toDomain(), nil
}

func (repo *principalRepository) GetPrincipalByUsername(ctx context.Context, role principal.Role, username string) (principal.Principal, error) {
	var row principalRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM principals WHERE role = $1 AND username = $2`, role.String(), username)
	if err == sql.ErrNoRows {
		return principal.Principal{}, principal.ErrNotFound
	}
	if err != nil {
		return principal.Principal{}, err
	}
	return row.toDomain(), nil
}

func (repo *principalRepository) CheckUsernameUniqueness(ctx context.Context, role principal.Role, username string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM principals WHERE role = $1 AND username = $2)`, role.String(), username)
	if err != nil {
		return err
	}
	if exists {
		return principal.ErrUsernameExists
	}
	return nil
}

type staffRow struct {
	principalRow
	SalaryType string  `db:"salary_type"`
	SalaryRate float64 `db:"salary_rate"`
}

func (r staffRow) toDomain() principal.Staff {
	return principal.Staff{
		Principal: r.principalRow.toDomain(),
		Salary: principal.SalaryPolicy{
			Type: principal.SalaryType(r.SalaryType),
			Rate: r.SalaryRate,
		},
	}
}

const selectStaffSQL = `
SELECT p.*, s.salary_type, s.salary_rate
FROM principals p JOIN staff s ON s.principal_id = p.id`

func (repo *principalRepository) GetStaff(ctx context.Context, tenantID, id string) (principal.Staff, error) {
	var row staffRow
	err := repo.db.GetContext(ctx, &row, selectStaffSQL+` WHERE p.tenant_id = $1 AND p.id = $2`, tenantID, id)
	if err == sql.ErrNoRows {
		return principal.Staff{}, principal.ErrNotFound
	}
	if err != nil {
		return principal.Staff{}, err
	}
	return row.toDomain(), nil
}

func (repo *principalRepository) QueryStaff(ctx context.Context, tenantID string) ([]principal.Staff, error) {
	var rows []staffRow
	err := repo.db.SelectContext(ctx, &rows, selectStaffSQL+` WHERE p.tenant_id = $1 ORDER BY p.created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	staff := make([]principal.Staff, 0, len(rows))
	for _, r := range rows {
		staff = append(staff, r.toDomain())
	}
	return staff, nil
}

type studentRow struct {
	principalRow
	AdmissionDate   time.Time    `db:"admission_date"`
	TotalFees       float64      `db:"total_fees"`
	PaidAmount      float64      `db:"paid_amount"`
	DueAmount       float64      `db:"due_amount"`
	LastPaymentDate sql.NullTime `db:"last_payment_date"`
	Status          string       `db:"status"`
}

func (r studentRow) toDomain() principal.Student {
	s := principal.Student{
		Principal:     r.principalRow.toDomain(),
		AdmissionDate: r.AdmissionDate.UTC(),
		TotalFees:     r.TotalFees,
		PaidAmount:    r.PaidAmount,
		DueAmount:     r.DueAmount,
		Status:        principal.StudentStatus(r.Status),
	}
	if r.LastPaymentDate.Valid {
		s.LastPaymentDate = r.LastPaymentDate.Time.UTC()
	}
	return s
}

const selectStudentSQL = `
SELECT p.*, s.admission_date, s.total_fees, s.paid_amount, s.due_amount, s.last_payment_date, s.status
FROM principals p JOIN students s ON s.principal_id = p.id`

func (repo *principalRepository) GetStudent(ctx context.Context, tenantID, id string) (principal.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, selectStudentSQL+` WHERE p.tenant_id = $1 AND p.id = $2`, tenantID, id)
	if err == sql.ErrNoRows {
		return principal.Student{}, principal.ErrNotFound
	}
	if err != nil {
		return principal.Student{}, err
	}
	return row.toDomain(), nil
}

func (repo *principalRepository) QueryStudents(ctx context.Context, tenantID string) ([]principal.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows, selectStudentSQL+` WHERE p.tenant_id = $1 ORDER BY p.created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	students := make([]principal.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toDomain())
	}
	return students, nil
}

func (repo *principalRepository) CountStudentsByStatus(ctx context.Context, tenantID string, status principal.StudentStatus) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM principals p JOIN students s ON s.principal_id = p.id
		 WHERE p.tenant_id = $1 AND s.status = $2`, tenantID, string(status))
	return n, err
}

func (repo *principalRepository) SetPrincipalActive(ctx context.Context, tenantID, id string, active bool) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE principals SET is_active = $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3`,
		active, tenantID, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (repo *principalRepository) SetStudentStatus(ctx context.Context, tenantID, id string, status principal.StudentStatus) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE students SET status = $1
		 WHERE principal_id = (SELECT id FROM principals WHERE tenant_id = $2 AND id = $3)`,
		string(status), tenantID, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (repo *principalRepository) UpdateCredential(ctx context.Context, id string, hash []byte) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE principals SET credential_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (repo *principalRepository) SetLastLogin(ctx context.Context, id string, t time.Time) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE principals SET last_login = $1 WHERE id = $2`, t, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return principal.ErrNotFound
	}
	return nil
}
