package report

import (
	"errors"
	"time"

	"fieldtrack/internal/models"
	"fieldtrack/internal/schedule"
)

var (
	ErrBadMetric     = errors.New("unknown goal metric")
	ErrBadPeriod     = errors.New("unknown goal period")
	ErrBadTarget     = errors.New("target count must be positive")
	ErrMissingWindow = errors.New("custom period needs start and end dates")
)

type Progress struct {
	Current    int `json:"current"`
	Target     int `json:"target"`
	Percentage int `json:"percentage"`
}

// ValidateGoal rejects bad goal definitions at creation time; progress
// reads assume a valid goal.
func ValidateGoal(goal models.Goal) error {
	switch goal.Metric {
	case models.MetricCompletedCount, models.MetricCreatedCount, models.MetricTotalCount:
	default:
		return ErrBadMetric
	}
	switch goal.Period {
	case models.GoalPeriodWeekly, models.GoalPeriodMonthly:
	case models.GoalPeriodCustom:
		if goal.StartDate == nil || goal.EndDate == nil {
			return ErrMissingWindow
		}
		if schedule.Day(*goal.EndDate).Before(schedule.Day(*goal.StartDate)) {
			return ErrMissingWindow
		}
	default:
		return ErrBadPeriod
	}
	if goal.TargetCount <= 0 {
		return ErrBadTarget
	}
	return nil
}

// GoalProgress counts the activities that fall inside the goal's
// active window and match its metric. WEEKLY and MONTHLY windows are
// always the week/month containing now, so progress is a live value
// recomputed on every read, never a stored counter.
func GoalProgress(goal models.Goal, activities []models.Activity, now time.Time) Progress {
	p := Progress{Target: goal.TargetCount}
	if goal.TargetCount <= 0 {
		return p
	}
	for _, a := range activities {
		if !inWindow(goal, a.Date, now) {
			continue
		}
		// CREATED_COUNT and TOTAL_COUNT both count every activity in
		// range; only COMPLETED_COUNT filters on status.
		if goal.Metric == models.MetricCompletedCount && a.Status != models.StatusConcluida {
			continue
		}
		p.Current++
	}
	p.Percentage = roundPercent(p.Current, p.Target)
	if p.Percentage > 100 {
		p.Percentage = 100
	}
	return p
}

func inWindow(goal models.Goal, date, now time.Time) bool {
	switch goal.Period {
	case models.GoalPeriodWeekly:
		return schedule.WithinPeriod(date, schedule.PeriodWeek, now)
	case models.GoalPeriodMonthly:
		return schedule.WithinPeriod(date, schedule.PeriodMonth, now)
	case models.GoalPeriodCustom:
		if goal.StartDate == nil || goal.EndDate == nil {
			return false
		}
		d := schedule.Day(date)
		return !d.Before(schedule.Day(*goal.StartDate)) && !d.After(schedule.Day(*goal.EndDate))
	default:
		return false
	}
}
