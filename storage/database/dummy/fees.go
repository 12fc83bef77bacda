package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/chuodev/chuo/core/fees"
	"github.com/chuodev/chuo/core/principal"
)

type feesRepository struct {
	db         *feesTable
	principals *principalTable
}

var _ fees.Repository = (*feesRepository)(nil) // interface compliance check

func NewFeesRepository(db *DB) fees.Repository {
	return &feesRepository{db: db.fees, principals: db.principal}
}

// ApplyPayment appends the payment and settles the student's cached totals
// under both table locks, so a reader never observes one without the other.
// Lock order (principals, fees) is fixed across the package.
func (repo *feesRepository) ApplyPayment(_ context.Context, pmt fees.Payment) (fees.Payment, principal.Student, error) {
	repo.principals.Lock()
	defer repo.principals.Unlock()
	repo.db.Lock()
	defer repo.db.Unlock()

	std, ok := repo.principals.students[pmt.StudentID]
	if !ok || std.TenantID != pmt.TenantID {
		return fees.Payment{}, principal.Student{}, principal.ErrNotFound
	}

	receiptKey := pmt.TenantID + "|" + pmt.ReceiptNumber
	if repo.db.receipts[receiptKey] {
		return fees.Payment{}, principal.Student{}, fees.ErrReceiptExists
	}

	repo.db.payments = append(repo.db.payments, pmt)
	repo.db.receipts[receiptKey] = true

	net := pmt.Net()
	std.PaidAmount += net
	if std.DueAmount = std.DueAmount - net; std.DueAmount < 0 {
		std.DueAmount = 0
	}
	std.LastPaymentDate = pmt.CreatedAt

	return pmt, *std, nil
}

func (repo *feesRepository) QueryPaymentsByStudent(_ context.Context, tenantID, studentID string) ([]fees.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var payments []fees.Payment
	for _, p := range repo.db.payments {
		if p.TenantID == tenantID && p.StudentID == studentID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
	return payments, nil
}

func (repo *feesRepository) QueryPaymentsByCycle(_ context.Context, tenantID string, month time.Month, year int) ([]fees.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var payments []fees.Payment
	for _, p := range repo.db.payments {
		if p.TenantID == tenantID && p.Month == month && p.Year == year {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

func (repo *feesRepository) TotalDue(_ context.Context, tenantID string, includeInactive bool) (float64, error) {
	repo.principals.RLock()
	defer repo.principals.RUnlock()

	var total float64
	for _, std := range repo.principals.students {
		if std.TenantID != tenantID {
			continue
		}
		if !includeInactive && std.Status != principal.StudentActive {
			continue
		}
		total += std.DueAmount
	}
	return total, nil
}
