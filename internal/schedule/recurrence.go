package schedule

import (
	"errors"
	"time"

	"fieldtrack/internal/models"
)

const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
)

var (
	ErrBadFrequency  = errors.New("unknown frequency")
	ErrEmptyWeekdays = errors.New("weekly rule needs at least one weekday")
	ErrBadWeekday    = errors.New("weekday must be 0 (Sunday) through 6 (Saturday)")
	ErrBadDayOfMonth = errors.New("day of month must be between 1 and 28")
	ErrBadWindow     = errors.New("end date before start date")
)

// ValidateRule rejects misconfigured rules at creation time so the
// expander can assume sane input. Monthly rules cap the day at 28 to
// sidestep short months; clamp-to-month-end is intentionally not
// offered.
func ValidateRule(rule models.RecurrenceRule) error {
	switch rule.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if len(rule.Weekdays) == 0 {
			return ErrEmptyWeekdays
		}
		for _, wd := range rule.Weekdays {
			if wd < 0 || wd > 6 {
				return ErrBadWeekday
			}
		}
	case FrequencyMonthly:
		if rule.DayOfMonth < 1 || rule.DayOfMonth > 28 {
			return ErrBadDayOfMonth
		}
	default:
		return ErrBadFrequency
	}
	if rule.EndDate != nil && Day(*rule.EndDate).Before(Day(rule.StartDate)) {
		return ErrBadWindow
	}
	return nil
}

// Expand returns, in ascending order, every calendar date in
// [from, to] on which rule should materialize an instance. It keeps no
// state: calling it twice with the same inputs yields the same dates,
// and nothing at or before the LastGenerated watermark is ever
// re-emitted. Persisting the instances and advancing the watermark is
// the caller's job.
//
// A rule that fails ValidateRule yields nothing rather than panicking;
// validation belongs at rule creation, this is just the backstop.
func Expand(rule models.RecurrenceRule, from, to time.Time) []time.Time {
	if !rule.Active || ValidateRule(rule) != nil {
		return nil
	}

	start := Day(from)
	if s := Day(rule.StartDate); s.After(start) {
		start = s
	}
	if rule.LastGenerated != nil {
		if next := Day(*rule.LastGenerated).AddDate(0, 0, 1); next.After(start) {
			start = next
		}
	}
	end := Day(to)
	if rule.EndDate != nil {
		if e := Day(*rule.EndDate); e.Before(end) {
			end = e
		}
	}
	if end.Before(start) {
		return nil
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if matches(rule, d) {
			dates = append(dates, d)
		}
	}
	return dates
}

func matches(rule models.RecurrenceRule, d time.Time) bool {
	switch rule.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		wd := int(d.Weekday())
		for _, want := range rule.Weekdays {
			if wd == want {
				return true
			}
		}
		return false
	case FrequencyMonthly:
		return d.Day() == rule.DayOfMonth
	default:
		return false
	}
}
