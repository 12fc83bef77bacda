package salary

import (
	"testing"
	"time"

	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/principal"
)

func present(y int, m time.Month, d int) attendance.Record {
	return attendance.Record{
		SubjectID:   "stf1",
		SubjectKind: attendance.KindStaff,
		Date:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Status:      attendance.StatusPresent,
	}
}

func presentHours(y int, m time.Month, d, fromH, fromM, toH, toM int) attendance.Record {
	rec := present(y, m, d)
	in := time.Date(y, m, d, fromH, fromM, 0, 0, time.UTC)
	out := time.Date(y, m, d, toH, toM, 0, 0, time.UTC)
	rec.CheckIn, rec.CheckOut = &in, &out
	return rec
}

func TestCompute(t *testing.T) {
	march := []attendance.Record{
		presentHours(2026, time.March, 2, 9, 0, 13, 30),  // 4.5h
		presentHours(2026, time.March, 3, 9, 0, 12, 0),   // 3h
		present(2026, time.March, 4),                     // no stamps
		{SubjectID: "stf1", Date: time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), Status: attendance.StatusAbsent},
		presentHours(2026, time.April, 1, 9, 0, 17, 0), // outside the month
	}

	tests := []struct {
		name    string
		policy  principal.SalaryPolicy
		records []attendance.Record
		want    float64
	}{
		{
			name:    "monthly fixed ignores attendance",
			policy:  principal.SalaryPolicy{Type: principal.SalaryMonthlyFixed, Rate: 50000},
			records: march,
			want:    50000,
		},
		{
			name:    "monthly fixed with no records at all",
			policy:  principal.SalaryPolicy{Type: principal.SalaryMonthlyFixed, Rate: 50000},
			records: nil,
			want:    50000,
		},
		{
			name:    "per session counts present days in month",
			policy:  principal.SalaryPolicy{Type: principal.SalaryPerSession, Rate: 500},
			records: march,
			want:    1500, // 3 present days in march
		},
		{
			name:    "hourly sums stamped intervals",
			policy:  principal.SalaryPolicy{Type: principal.SalaryHourly, Rate: 100},
			records: march,
			want:    750, // 4.5h + 3h; unstamped day contributes zero
		},
		{
			name:    "hourly single shift",
			policy:  principal.SalaryPolicy{Type: principal.SalaryHourly, Rate: 100},
			records: []attendance.Record{presentHours(2026, time.March, 2, 9, 0, 13, 30)},
			want:    450,
		},
		{
			name:    "no records earns nothing",
			policy:  principal.SalaryPolicy{Type: principal.SalaryPerSession, Rate: 500},
			records: nil,
			want:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.policy, tt.records, time.March, 2026); got != tt.want {
				t.Errorf("Compute() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	policy := principal.SalaryPolicy{Type: principal.SalaryHourly, Rate: 100}
	records := []attendance.Record{
		presentHours(2026, time.March, 2, 9, 0, 13, 30),
		presentHours(2026, time.March, 3, 8, 0, 16, 0),
	}
	first := Compute(policy, records, time.March, 2026)
	for i := 0; i < 10; i++ {
		if got := Compute(policy, records, time.March, 2026); got != first {
			t.Fatalf("Compute() = %v on run %d, want %v", got, i, first)
		}
	}
}
