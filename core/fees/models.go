package fees

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/principal"
)

type PaymentMode string

const (
	ModeCash   PaymentMode = "cash"
	ModeOnline PaymentMode = "online"
	ModeCheque PaymentMode = "cheque"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case ModeCash, ModeOnline, ModeCheque:
		return true
	}
	return false
}

// Payment is an immutable ledger entry: never edited or deleted once created.
// Month/Year key the billing cycle it settles.
type Payment struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenant_id"`
	StudentID     string      `json:"student_id"`
	Amount        float64     `json:"amount"`
	Discount      float64     `json:"discount"`
	Mode          PaymentMode `json:"mode"`
	ReceiptNumber string      `json:"receipt_number"` // unique per tenant
	Month         time.Month  `json:"month"`
	MonthName     string      `json:"month_name"`
	Year          int         `json:"year"`
	TxRef         string      `json:"tx_ref,omitempty"` // external gateway reference, recorded only
	CollectedBy   string      `json:"collected_by"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
}

// Net is the amount credited to the student's ledger.
func (p Payment) Net() float64 { return p.Amount - p.Discount }

// Receipt is the result of a successful payment: the persisted entry plus the
// student's settled ledger state.
type Receipt struct {
	Payment Payment           `json:"payment"`
	Student principal.Student `json:"student"`
}

// NewPayment is the input to apply a payment against a student's dues.
type NewPayment struct {
	StudentID string      `json:"student_id" validate:"required"`
	Amount    float64     `json:"amount" validate:"gte=0"`
	Discount  float64     `json:"discount" validate:"gte=0"`
	Mode      PaymentMode `json:"mode" validate:"required"`
	TxRef     string      `json:"tx_ref"`
	// optional billing-cycle override; defaults to the current cycle
	Month time.Month `json:"month"`
	Year  int        `json:"year"`
}

func (np *NewPayment) Validate() error {
	np.StudentID = core.CleanString(np.StudentID)
	np.TxRef = core.CleanString(np.TxRef)

	if err := core.Validate.Struct(np); err != nil {
		return err
	}
	if !np.Mode.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "mode", Error: "invalid payment mode"})
	}
	return nil
}

// ReceiptNumberFunc generates a tenant-scoped unique receipt number. The
// store's unique constraint backs it up.
type ReceiptNumberFunc func(tenantID string) string

// DefaultReceiptNumber derives a short random receipt number.
func DefaultReceiptNumber(string) string {
	id := uuid.New().String()
	return "RCT-" + strings.ToUpper(id[:8])
}
