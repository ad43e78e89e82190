package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fieldtrack/internal/models"
)

func ptr(t time.Time) *time.Time { return &t }

func TestClassifyDeadlineOverdue(t *testing.T) {
	got := ClassifyDeadline(ptr(date("2025-01-10")), models.StatusPendente, date("2025-01-15"))
	assert.Equal(t, DeadlineOverdue, got.Status)
	assert.Equal(t, -5, got.DaysLeft)
}

func TestClassifyDeadlineToday(t *testing.T) {
	// Today must win over DUE_SOON, never count as OVERDUE.
	now := time.Date(2025, 1, 15, 23, 59, 0, 0, time.UTC)
	got := ClassifyDeadline(ptr(date("2025-01-15")), models.StatusPendente, now)
	assert.Equal(t, DeadlineDueToday, got.Status)
}

func TestClassifyDeadlineDueSoonBoundary(t *testing.T) {
	now := date("2025-01-15")
	// Exactly 3 days out is DUE_SOON (inclusive boundary).
	got := ClassifyDeadline(ptr(date("2025-01-18")), models.StatusPendente, now)
	assert.Equal(t, DeadlineDueSoon, got.Status)
	assert.Equal(t, 3, got.DaysLeft)
	// 4 days out is not.
	got = ClassifyDeadline(ptr(date("2025-01-19")), models.StatusPendente, now)
	assert.Equal(t, DeadlineOnTrack, got.Status)
	assert.Equal(t, 4, got.DaysLeft)
}

func TestClassifyDeadlineTerminalStatuses(t *testing.T) {
	now := date("2025-01-15")
	overdue := ptr(date("2024-12-01"))
	for _, status := range []string{models.StatusConcluida, models.StatusCancelada} {
		got := ClassifyDeadline(overdue, status, now)
		assert.Equal(t, DeadlineNotApplicable, got.Status, "status %s", status)
	}
}

func TestClassifyDeadlineMissing(t *testing.T) {
	got := ClassifyDeadline(nil, models.StatusPendente, date("2025-01-15"))
	assert.Equal(t, DeadlineNotApplicable, got.Status)
}
