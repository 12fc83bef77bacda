package fees

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/principal"
)

var (
	// errors
	ErrInactiveSubject = errors.New("student is not active")
	ErrStudentNotFound = errors.New("student not found")
	ErrReceiptExists   = errors.New("receipt number already exists")

	nowFunc = time.Now // mockable
)

type (
	// Repository is the persistence collaborator for the fee ledger.
	// ApplyPayment must append the payment and settle the student's cached
	// totals (paid += net, due = max(0, due-net), lastPaymentDate) as one
	// atomic unit; a crash may never leave one without the other.
	Repository interface {
		ApplyPayment(ctx context.Context, pmt Payment) (Payment, principal.Student, error)
		QueryPaymentsByStudent(ctx context.Context, tenantID, studentID string) ([]Payment, error)
		QueryPaymentsByCycle(ctx context.Context, tenantID string, month time.Month, year int) ([]Payment, error)
		// TotalDue aggregates outstanding dues across a tenant.
		TotalDue(ctx context.Context, tenantID string, includeInactive bool) (float64, error)
	}

	Service struct {
		repo       Repository
		principals *principal.Service
		receiptNum ReceiptNumberFunc
		audit      core.AuditRecorder
		logger     core.Logger
		mail       core.EmailService
	}
)

func NewService(
	repo Repository,
	principals *principal.Service,
	receiptNum ReceiptNumberFunc,
	audit core.AuditRecorder,
	logger core.Logger,
	mailSvc core.EmailService,
) *Service {
	if receiptNum == nil {
		receiptNum = DefaultReceiptNumber
	}
	return &Service{
		repo:       repo,
		principals: principals,
		receiptNum: receiptNum,
		audit:      audit,
		logger:     logger,
		mail:       mailSvc,
	}
}

// Apply records a payment against a student's running dues. Only the Admin
// channel may carry a discount; Staff and Student channels have it forced to
// zero as policy, not rejected as input. Inactive students cannot receive
// payments.
func (svc *Service) Apply(ctx context.Context, scope auth.EffectiveScope, in NewPayment) (Receipt, error) {
	if err := in.Validate(); err != nil {
		return Receipt{}, err
	}
	if scope.Role == principal.RoleStudent && in.StudentID != scope.SubjectID {
		return Receipt{}, auth.ErrScopeViolation
	}
	if scope.Role != principal.RoleAdmin {
		in.Discount = 0
	}

	std, err := svc.principals.GetStudent(ctx, scope.TenantID, in.StudentID)
	if err != nil {
		if err == principal.ErrNotFound {
			return Receipt{}, ErrStudentNotFound
		}
		return Receipt{}, err
	}
	if std.Status != principal.StudentActive || !std.IsActive {
		return Receipt{}, ErrInactiveSubject
	}

	now := nowFunc().UTC()
	cycle := CycleOf(now)
	if in.Month != 0 && in.Year != 0 {
		cycle = Cycle{Month: in.Month, Year: in.Year}
	}

	pmt := Payment{
		ID:            uuid.New().String(),
		TenantID:      scope.TenantID,
		StudentID:     std.ID,
		Amount:        in.Amount,
		Discount:      in.Discount,
		Mode:          in.Mode,
		ReceiptNumber: svc.receiptNum(scope.TenantID),
		Month:         cycle.Month,
		MonthName:     cycle.Name(),
		Year:          cycle.Year,
		TxRef:         in.TxRef,
		CollectedBy:   scope.PrincipalID,
		CreatedAt:     now,
	}

	pmt, std, err = svc.repo.ApplyPayment(ctx, pmt)
	if err != nil {
		return Receipt{}, pkgerrors.Wrap(err, "applying payment")
	}

	svc.audit.Record(ctx, core.AuditEntry{
		TenantID:    scope.TenantID,
		PrincipalID: scope.PrincipalID,
		Role:        scope.Role.String(),
		Action:      "apply_payment",
		Module:      "fees",
		EntityID:    pmt.ID,
		NewData:     pmt,
		CreatedAt:   now,
	})
	svc.sendReceiptMail(std, pmt)

	return Receipt{Payment: pmt, Student: std}, nil
}

// QueryByStudent lists a student's payments.
func (svc *Service) QueryByStudent(ctx context.Context, scope auth.EffectiveScope, studentID string) ([]Payment, error) {
	if scope.Role == principal.RoleStudent && studentID != scope.SubjectID {
		return nil, auth.ErrScopeViolation
	}
	return svc.repo.QueryPaymentsByStudent(ctx, scope.TenantID, studentID)
}

// QueryByCycle lists a tenant's payments for one billing cycle. Students only
// ever see their own.
func (svc *Service) QueryByCycle(ctx context.Context, scope auth.EffectiveScope, month time.Month, year int) ([]Payment, error) {
	pmts, err := svc.repo.QueryPaymentsByCycle(ctx, scope.TenantID, month, year)
	if err != nil {
		return nil, err
	}
	if scope.Role == principal.RoleStudent {
		own := pmts[:0]
		for _, p := range pmts {
			if p.StudentID == scope.SubjectID {
				own = append(own, p)
			}
		}
		pmts = own
	}
	return pmts, nil
}

// NextDue derives the student's next due date and the outstanding amount.
// The date is the admission day-of-month projected into the first cycle with
// no recorded payment, clamped to valid month ends.
func (svc *Service) NextDue(ctx context.Context, scope auth.EffectiveScope, studentID string) (time.Time, float64, error) {
	if scope.Role == principal.RoleStudent && studentID != scope.SubjectID {
		return time.Time{}, 0, auth.ErrScopeViolation
	}
	std, err := svc.principals.GetStudent(ctx, scope.TenantID, studentID)
	if err != nil {
		if err == principal.ErrNotFound {
			return time.Time{}, 0, ErrStudentNotFound
		}
		return time.Time{}, 0, err
	}

	payments, err := svc.repo.QueryPaymentsByStudent(ctx, scope.TenantID, studentID)
	if err != nil {
		return time.Time{}, 0, err
	}
	paid := make(map[Cycle]bool, len(payments))
	for _, p := range payments {
		paid[Cycle{Month: p.Month, Year: p.Year}] = true
	}

	due := NextDueDate(std.AdmissionDate, nowFunc(), paid)
	return due, std.DueAmount, nil
}

// TotalDue aggregates a tenant's outstanding dues. Whether inactive students
// count is a deployment decision, not an assumption.
func (svc *Service) TotalDue(ctx context.Context, scope auth.EffectiveScope, includeInactive bool) (float64, error) {
	return svc.repo.TotalDue(ctx, scope.TenantID, includeInactive)
}

// sendReceiptMail emails the receipt to the student. Best effort.
func (svc *Service) sendReceiptMail(std principal.Student, pmt Payment) {
	if std.Email == "" {
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: std.Name, Address: std.Email}},
		Subject: "Payment receipt " + pmt.ReceiptNumber,
		Body: fmt.Sprintf(
			"Received %.2f (%s %d). Discount: %.2f. Outstanding dues: %.2f.",
			pmt.Amount, pmt.MonthName, pmt.Year, pmt.Discount, std.DueAmount,
		),
	})
}
