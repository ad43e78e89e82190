// Package schedule holds the date logic the rest of the service leans
// on: day-granularity predicates, deadline classification and
// recurrence expansion. Everything here is a pure function of its
// inputs; callers supply "now" so behavior is reproducible in tests.
package schedule

import "time"

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Day truncates t to midnight UTC. All comparisons in this package
// operate on Day-normalized values; time-of-day is ignored.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// DaysBetween returns b minus a in whole calendar days. Negative when
// b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// WeekStart returns the Monday of the week containing ref. Monday is
// the week-start convention used throughout, not Sunday.
func WeekStart(ref time.Time) time.Time {
	d := Day(ref)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WithinPeriod reports whether date falls in the period containing
// referenceDate: same day, same Monday-start week, same month, or
// same year.
func WithinPeriod(date time.Time, period Period, referenceDate time.Time) bool {
	d := Day(date)
	ref := Day(referenceDate)
	switch period {
	case PeriodDay:
		return d.Equal(ref)
	case PeriodWeek:
		start := WeekStart(ref)
		return !d.Before(start) && d.Before(start.AddDate(0, 0, 7))
	case PeriodMonth:
		return d.Year() == ref.Year() && d.Month() == ref.Month()
	case PeriodYear:
		return d.Year() == ref.Year()
	default:
		return false
	}
}

// ParseDate accepts YYYY-MM-DD (what date inputs send) or an RFC3339
// timestamp. Malformed input reports ok=false instead of an error so
// callers can treat it as a data-quality event without branching on
// error kinds.
func ParseDate(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Day(t), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Day(t), true
	}
	return time.Time{}, false
}
