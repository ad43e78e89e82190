package schedule

import (
	"time"

	"fieldtrack/internal/models"
)

type DeadlineStatus string

const (
	DeadlineOverdue       DeadlineStatus = "OVERDUE"
	DeadlineDueToday      DeadlineStatus = "DUE_TODAY"
	DeadlineDueSoon       DeadlineStatus = "DUE_SOON"
	DeadlineOnTrack       DeadlineStatus = "ON_TRACK"
	DeadlineNotApplicable DeadlineStatus = "NOT_APPLICABLE"
)

// dueSoonDays is the inclusive boundary: a deadline exactly this many
// days out is still DUE_SOON.
const dueSoonDays = 3

type Deadline struct {
	Status DeadlineStatus `json:"status"`
	// DaysLeft is deadline minus today in whole days; negative when
	// overdue. Zero and meaningless when Status is NOT_APPLICABLE.
	DaysLeft int `json:"days_left"`
}

func isTerminal(status string) bool {
	return status == models.StatusConcluida || status == models.StatusCancelada
}

// ClassifyDeadline derives the urgency label for an activity. The
// ordering is a strict priority chain: OVERDUE beats DUE_TODAY beats
// DUE_SOON beats ON_TRACK. Completed and cancelled activities never
// classify, whatever their deadline says.
func ClassifyDeadline(deadline *time.Time, status string, now time.Time) Deadline {
	if deadline == nil || isTerminal(status) {
		return Deadline{Status: DeadlineNotApplicable}
	}
	daysLeft := DaysBetween(now, *deadline)
	switch {
	case daysLeft < 0:
		return Deadline{Status: DeadlineOverdue, DaysLeft: daysLeft}
	case daysLeft == 0:
		return Deadline{Status: DeadlineDueToday}
	case daysLeft <= dueSoonDays:
		return Deadline{Status: DeadlineDueSoon, DaysLeft: daysLeft}
	default:
		return Deadline{Status: DeadlineOnTrack, DaysLeft: daysLeft}
	}
}
