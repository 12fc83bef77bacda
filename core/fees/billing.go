package fees

import (
	"time"

	"github.com/chuodev/chuo/core"
)

// Cycle is a (month-name, year) billing bucket.
type Cycle struct {
	Month time.Month `json:"month"`
	Year  int        `json:"year"`
}

func (c Cycle) Name() string { return c.Month.String() }

// CycleOf returns the billing cycle a timestamp falls in.
func CycleOf(t time.Time) Cycle {
	t = t.UTC()
	return Cycle{Month: t.Month(), Year: t.Year()}
}

// MonthsSinceAdmission is the calendar-month difference between the admission
// anchor and now; never negative.
func MonthsSinceAdmission(admission, now time.Time) int {
	admission, now = core.DateOf(admission), core.DateOf(now)
	months := (now.Year()-admission.Year())*12 + int(now.Month()) - int(admission.Month())
	if months < 0 {
		return 0
	}
	return months
}

// ProjectDay places the admission day-of-month into a target cycle, clamping
// to the month's last day so a day-31 anchor lands on Feb 28/29 rather than
// overflowing into March.
func ProjectDay(year int, month time.Month, day int) time.Time {
	if last := core.LastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NextDueDate projects the admission day-of-month into the first cycle, from
// the admission cycle onward, that has no recorded payment. `paid` holds the
// cycles already settled.
func NextDueDate(admission, now time.Time, paid map[Cycle]bool) time.Time {
	admission = core.DateOf(admission)
	cycle := Cycle{Month: admission.Month(), Year: admission.Year()}
	limit := MonthsSinceAdmission(admission, now) + 1 // first unpaid may be next month

	for i := 0; i <= limit; i++ {
		if !paid[cycle] {
			return ProjectDay(cycle.Year, cycle.Month, admission.Day())
		}
		cycle = cycle.next()
	}
	return ProjectDay(cycle.Year, cycle.Month, admission.Day())
}

func (c Cycle) next() Cycle {
	if c.Month == time.December {
		return Cycle{Month: time.January, Year: c.Year + 1}
	}
	return Cycle{Month: c.Month + 1, Year: c.Year}
}
