package attendance

import (
	"math"
	"time"

	"github.com/chuodev/chuo/core"
)

// PresentCount counts records with Present status.
func PresentCount(records []Record) int {
	var n int
	for _, r := range records {
		if r.Status == StatusPresent {
			n++
		}
	}
	return n
}

// Percentage returns round(100 * present / total); 0 when total is 0.
func Percentage(present, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(present) / float64(total)))
}

// PercentagePrecise is Percentage at two decimals, for finer reports.
func PercentagePrecise(present, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(10000*float64(present)/float64(total)) / 100
}

// HasAbsenceStreak reports whether every one of the `window` calendar days
// ending at ref has an Absent record in `records`. A day with no record at
// all breaks the streak: a subject enrolled mid-window must not qualify on
// partial data.
func HasAbsenceStreak(records []Record, ref time.Time, window int) bool {
	if window <= 0 {
		return false
	}
	byDay := make(map[string]Status, len(records))
	for _, r := range records {
		byDay[core.DateOf(r.Date).Format("2006-01-02")] = r.Status
	}

	day := core.DateOf(ref)
	for i := 0; i < window; i++ {
		status, ok := byDay[day.Format("2006-01-02")]
		if !ok || status != StatusAbsent {
			return false
		}
		day = day.AddDate(0, 0, -1)
	}
	return true
}
