package attendance

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name    string
		present int
		total   int
		want    int
	}{
		{name: "no records", present: 0, total: 0, want: 0},
		{name: "all present", present: 10, total: 10, want: 100},
		{name: "none present", present: 0, total: 10, want: 0},
		{name: "rounds up", present: 2, total: 3, want: 67},
		{name: "rounds down", present: 1, total: 3, want: 33},
		{name: "exact half", present: 1, total: 2, want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.present, tt.total); got != tt.want {
				t.Errorf("Percentage(%d, %d) = %d, want %d", tt.present, tt.total, got, tt.want)
			}
		})
	}
}

func TestPercentagePrecise(t *testing.T) {
	if got := PercentagePrecise(2, 3); got != 66.67 {
		t.Errorf("PercentagePrecise(2, 3) = %v, want 66.67", got)
	}
	if got := PercentagePrecise(0, 0); got != 0 {
		t.Errorf("PercentagePrecise(0, 0) = %v, want 0", got)
	}
}

func TestHasAbsenceStreak(t *testing.T) {
	rec := func(d time.Time, status Status) Record {
		return Record{SubjectID: "s1", Date: d, Status: status}
	}
	ref := day(2026, time.March, 10)

	tests := []struct {
		name    string
		records []Record
		window  int
		want    bool
	}{
		{
			name: "three straight absences",
			records: []Record{
				rec(day(2026, time.March, 8), StatusAbsent),
				rec(day(2026, time.March, 9), StatusAbsent),
				rec(day(2026, time.March, 10), StatusAbsent),
			},
			window: 3,
			want:   true,
		},
		{
			name: "present day breaks the streak",
			records: []Record{
				rec(day(2026, time.March, 8), StatusAbsent),
				rec(day(2026, time.March, 9), StatusPresent),
				rec(day(2026, time.March, 10), StatusAbsent),
			},
			window: 3,
			want:   false,
		},
		{
			name: "missing day breaks the streak",
			records: []Record{
				rec(day(2026, time.March, 8), StatusAbsent),
				rec(day(2026, time.March, 10), StatusAbsent),
			},
			window: 3,
			want:   false,
		},
		{
			name: "absences not ending at ref do not count",
			records: []Record{
				rec(day(2026, time.March, 7), StatusAbsent),
				rec(day(2026, time.March, 8), StatusAbsent),
				rec(day(2026, time.March, 9), StatusAbsent),
			},
			window: 3,
			want:   false,
		},
		{
			name: "late is not absent",
			records: []Record{
				rec(day(2026, time.March, 9), StatusAbsent),
				rec(day(2026, time.March, 10), StatusLate),
			},
			window: 2,
			want:   false,
		},
		{name: "zero window", records: nil, window: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAbsenceStreak(tt.records, ref, tt.window); got != tt.want {
				t.Errorf("HasAbsenceStreak() = %v, want %v", got, tt.want)
			}
		})
	}
}
