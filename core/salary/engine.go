// Package salary derives staff compensation from attendance snapshots.
// Compute is pure: repeat calls over a fixed snapshot always agree, and
// concurrent per-staff invocations share no state.
package salary

import (
	"time"

	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/principal"
)

// Compute derives the earned amount for one billing month from a staff
// member's attendance records and compensation policy. Records outside the
// month are ignored; hourly records missing either timestamp contribute zero
// hours.
func Compute(policy principal.SalaryPolicy, records []attendance.Record, month time.Month, year int) float64 {
	if policy.Type == principal.SalaryMonthlyFixed {
		// no pro-ration on partial months
		return policy.Rate
	}

	var presentCount int
	var hours float64
	for _, r := range records {
		if r.Date.Month() != month || r.Date.Year() != year {
			continue
		}
		if r.Status != attendance.StatusPresent {
			continue
		}
		presentCount++
		if r.CheckIn != nil && r.CheckOut != nil {
			hours += r.CheckOut.Sub(*r.CheckIn).Hours()
		}
	}

	switch policy.Type {
	case principal.SalaryPerSession:
		return float64(presentCount) * policy.Rate
	case principal.SalaryHourly:
		return hours * policy.Rate
	}
	return 0
}
