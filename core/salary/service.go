package salary

import (
	"context"
	"sync"
	"time"

	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/principal"
)

type (
	// Slip is one staff member's computed compensation for a month.
	Slip struct {
		StaffID  string                 `json:"staff_id"`
		Name     string                 `json:"name"`
		Policy   principal.SalaryPolicy `json:"policy"`
		Month    time.Month             `json:"month"`
		Year     int                    `json:"year"`
		Amount   float64                `json:"amount"`
		Sessions int                    `json:"sessions"`
	}

	Service struct {
		attendance attendance.Repository
		principals *principal.Service
	}
)

func NewService(attRepo attendance.Repository, principals *principal.Service) *Service {
	return &Service{attendance: attRepo, principals: principals}
}

// ComputeForStaff derives one staff member's earned amount for a month.
func (svc *Service) ComputeForStaff(ctx context.Context, scope auth.EffectiveScope, staffID string, month time.Month, year int) (Slip, error) {
	stf, err := svc.principals.GetStaff(ctx, scope.TenantID, staffID)
	if err != nil {
		return Slip{}, err
	}
	return svc.slip(ctx, scope.TenantID, stf, month, year)
}

// ComputeAll derives every staff member's slip for a month. Each staff
// member's computation is independent, so they run concurrently.
func (svc *Service) ComputeAll(ctx context.Context, scope auth.EffectiveScope, month time.Month, year int) ([]Slip, error) {
	staff, err := svc.principals.QueryStaff(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}

	slips := make([]Slip, len(staff))
	errs := make([]error, len(staff))
	var wg sync.WaitGroup
	for i, stf := range staff {
		wg.Add(1)
		go func(i int, stf principal.Staff) {
			defer wg.Done()
			slips[i], errs[i] = svc.slip(ctx, scope.TenantID, stf, month, year)
		}(i, stf)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return slips, nil
}

func (svc *Service) slip(ctx context.Context, tenantID string, stf principal.Staff, month time.Month, year int) (Slip, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	records, err := svc.attendance.QueryBySubject(ctx, tenantID, stf.ID, from, to)
	if err != nil {
		return Slip{}, err
	}
	return Slip{
		StaffID:  stf.ID,
		Name:     stf.Name,
		Policy:   stf.Salary,
		Month:    month,
		Year:     year,
		Amount:   Compute(stf.Salary, records, month, year),
		Sessions: attendance.PresentCount(records),
	}, nil
}
