package principal

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/chuodev/chuo/core"
)

// Role is the principal class. Each class has its own credential space;
// authorization decisions go through the policy table in core/auth, never
// through ad-hoc string comparisons.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleStudent Role = "student"
)

var AllRoles = []Role{RoleAdmin, RoleStaff, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleStudent:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// SalaryType selects how a staff member's compensation is derived.
type SalaryType string

const (
	SalaryPerSession   SalaryType = "per_session"
	SalaryMonthlyFixed SalaryType = "monthly_fixed"
	SalaryHourly       SalaryType = "hourly"
)

func (t SalaryType) Valid() bool {
	switch t {
	case SalaryPerSession, SalaryMonthlyFixed, SalaryHourly:
		return true
	}
	return false
}

// SalaryPolicy is pure configuration on a Staff record; only an admin edit
// may change it.
type SalaryPolicy struct {
	Type SalaryType `json:"type" validate:"required"`
	Rate float64    `json:"rate" validate:"gte=0"`
}

// StudentStatus tracks a student's standing within their tenant.
type StudentStatus string

const (
	StudentPending  StudentStatus = "pending" // awaiting admin approval
	StudentActive   StudentStatus = "active"
	StudentInactive StudentStatus = "inactive"
	StudentDropped  StudentStatus = "dropped"
)

type Principal struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Role           Role      `json:"role"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	IsActive       bool      `json:"is_active"`
	CredentialHash []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
	LastLogin      time.Time `json:"last_login"` // UTC
}

func (p *Principal) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.CredentialHash = hash
	return nil
}

func (p *Principal) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.CredentialHash, []byte(pwd))
}

func (p *Principal) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p *Principal) IsStaff() bool   { return p.Role == RoleStaff }
func (p *Principal) IsStudent() bool { return p.Role == RoleStudent }

// Staff is a Principal with a compensation policy.
type Staff struct {
	Principal
	Salary SalaryPolicy `json:"salary"`
}

// Student is a Principal with fee state. PaidAmount/DueAmount are a
// materialized view over the payment log, updated transactionally with every
// payment; paid + due == total is the target steady state, with the
// non-negative due floor accepted as a reconciliation approximation when
// TotalFees is revised later.
type Student struct {
	Principal
	AdmissionDate   time.Time     `json:"admission_date"`
	TotalFees       float64       `json:"total_fees"`
	PaidAmount      float64       `json:"paid_amount"`
	DueAmount       float64       `json:"due_amount"`
	LastPaymentDate time.Time     `json:"last_payment_date"`
	Status          StudentStatus `json:"status"`
}

// NewStaff contains information needed to register a staff member.
type NewStaff struct {
	TenantID        string       `json:"tenant_id" validate:"required"`
	Name            string       `json:"name" validate:"required"`
	Username        string       `json:"username" validate:"required,min=4,alphanum_"`
	Email           string       `json:"email" validate:"omitempty,email"`
	Password        string       `json:"password" validate:"required"`
	PasswordConfirm string       `json:"password_confirm" validate:"required,eqfield=Password"`
	Salary          SalaryPolicy `json:"salary" validate:"required"`
}

func (ns *NewStaff) Validate(svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	if !ns.Salary.Type.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "salary.type", Error: "invalid salary type"})
	}
	return svc.checkUniqueness(RoleStaff, ns.Username)
}

// NewStudent contains information needed to admit a student.
type NewStudent struct {
	TenantID        string    `json:"tenant_id" validate:"required"`
	Name            string    `json:"name" validate:"required"`
	Username        string    `json:"username" validate:"required,min=4,alphanum_"`
	Email           string    `json:"email" validate:"omitempty,email"`
	Password        string    `json:"password" validate:"required"`
	PasswordConfirm string    `json:"password_confirm" validate:"required,eqfield=Password"`
	AdmissionDate   time.Time `json:"admission_date" validate:"required"`
	TotalFees       float64   `json:"total_fees" validate:"gte=0"`
}

func (ns *NewStudent) Validate(svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkUniqueness(RoleStudent, ns.Username)
}

// ChangePassword rotates a principal's credential.
type ChangePassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cp ChangePassword) Validate() error { return core.Validate.Struct(cp) }
