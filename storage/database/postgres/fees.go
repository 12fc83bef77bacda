package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core/fees"
	"github.com/chuodev/chuo/core/principal"
)

type feesRepository struct {
	db         *sqlx.DB
	principals *principalRepository
}

var _ fees.Repository = (*feesRepository)(nil) // interface compliance check

func NewFeesRepository(db *sqlx.DB) fees.Repository {
	return &feesRepository{db: db, principals: &principalRepository{db: db}}
}

type paymentRow struct {
	ID            string    `db:"id"`
	TenantID      string    `db:"tenant_id"`
	StudentID     string    `db:"student_id"`
	Amount        float64   `db:"amount"`
	Discount      float64   `db:"discount"`
	Mode          string    `db:"mode"`
	ReceiptNumber string    `db:"receipt_number"`
	Month         int       `db:"month"`
	MonthName     string    `db:"month_name"`
	Year          int       `db:"year"`
	TxRef         string    `db:"tx_ref"`
	CollectedBy   string    `db:"collected_by"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r paymentRow) toDomain() fees.Payment {
	return fees.Payment{
		ID:            r.ID,
		TenantID:      r.TenantID,
		StudentID:     r.StudentID,
		Amount:        r.Amount,
		Discount:      r.Discount,
		Mode:          fees.PaymentMode(r.Mode),
		ReceiptNumber: r.ReceiptNumber,
		Month:         time.Month(r.Month),
		MonthName:     r.MonthName,
		Year:          r.Year,
		TxRef:         r.TxRef,
		CollectedBy:   r.CollectedBy,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

// ApplyPayment appends the payment and settles the student's cached totals in
// one transaction. The GREATEST(...) keeps the due floor at zero; the update
// is a single atomic statement, so concurrent payments serialize on the row.
func (repo *feesRepository) ApplyPayment(ctx context.Context, pmt fees.Payment) (fees.Payment, principal.Student, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return fees.Payment{}, principal.Student{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments
			(id, tenant_id, student_id, amount, discount, mode, receipt_number, month, month_name, year, tx_ref, collected_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		pmt.ID, pmt.TenantID, pmt.StudentID, pmt.Amount, pmt.Discount, string(pmt.Mode),
		pmt.ReceiptNumber, int(pmt.Month), pmt.MonthName, pmt.Year, pmt.TxRef, pmt.CollectedBy, pmt.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fees.Payment{}, principal.Student{}, fees.ErrReceiptExists
	}
	if err != nil {
		return fees.Payment{}, principal.Student{}, errors.Wrap(err, "inserting payment")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE students
		SET paid_amount = paid_amount + $1,
		    due_amount = GREATEST(due_amount - $1, 0),
		    last_payment_date = $2
		WHERE principal_id = $3`,
		pmt.Net(), pmt.CreatedAt, pmt.StudentID,
	)
	if err != nil {
		return fees.Payment{}, principal.Student{}, errors.Wrap(err, "settling student ledger")
	}
	if n, err := res.RowsAffected(); err != nil {
		return fees.Payment{}, principal.Student{}, err
	} else if n == 0 {
		return fees.Payment{}, principal.Student{}, principal.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fees.Payment{}, principal.Student{}, errors.Wrap(err, "committing payment")
	}

	std, err := repo.principals.GetStudent(ctx, pmt.TenantID, pmt.StudentID)
	if err != nil {
		return fees.Payment{}, principal.Student{}, err
	}
	return pmt, std, nil
}

func (repo *feesRepository) QueryPaymentsByStudent(ctx context.Context, tenantID, studentID string) ([]fees.Payment, error) {
	var rows []paymentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM payments
		WHERE tenant_id = $1 AND student_id = $2
		ORDER BY created_at`,
		tenantID, studentID,
	)
	if err != nil {
		return nil, err
	}
	return paymentsToDomain(rows), nil
}

func (repo *feesRepository) QueryPaymentsByCycle(ctx context.Context, tenantID string, month time.Month, year int) ([]fees.Payment, error) {
	var rows []paymentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM payments
		WHERE tenant_id = $1 AND month = $2 AND year = $3
		ORDER BY created_at`,
		tenantID, int(month), year,
	)
	if err != nil {
		return nil, err
	}
	return paymentsToDomain(rows), nil
}

func (repo *feesRepository) TotalDue(ctx context.Context, tenantID string, includeInactive bool) (float64, error) {
	query := `
		SELECT COALESCE(SUM(s.due_amount), 0)
		FROM students s JOIN principals p ON p.id = s.principal_id
		WHERE p.tenant_id = $1`
	if !includeInactive {
		query += ` AND s.status = 'active'`
	}

	var total float64
	err := repo.db.GetContext(ctx, &total, query, tenantID)
	return total, err
}

func paymentsToDomain(rows []paymentRow) []fees.Payment {
	payments := make([]fees.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.toDomain())
	}
	return payments
}
