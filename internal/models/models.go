package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Activity statuses are open-ended labels; only the terminal two are
// interpreted by the scheduling core.
const (
	StatusPendente    = "PENDENTE"
	StatusEmAndamento = "EM_ANDAMENTO"
	StatusConcluida   = "CONCLUIDA"
	StatusCancelada   = "CANCELADA"
)

const (
	RoleAdmin    = "admin"
	RoleGerente  = "gerente"
	RoleAnalista = "analista"
)

// Activity kinds select which table a row lives in. Regular and OSI
// activities share one shape and one code path.
const (
	KindActivity = "activity"
	KindOSI      = "osi"
)

type Activity struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Team        string     `json:"team"`
	Site        string     `json:"site"`
	City        string     `json:"city"`
	Notes       string     `json:"notes"`
	Date        time.Time  `json:"date"`
	Deadline    *time.Time `json:"deadline"`
	Status      string     `json:"status"`
	GeneratedBy *string    `json:"generated_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
	Version     int        `json:"version"`
}

// TemplateData is the field source copied into activities generated
// from a recurrence rule. Validated when the rule is created, not at
// expansion time.
type TemplateData struct {
	Title  string `json:"title"`
	Team   string `json:"team"`
	Site   string `json:"site"`
	City   string `json:"city"`
	Notes  string `json:"notes"`
	Status string `json:"status"`
}

type RecurrenceRule struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	Kind          string       `json:"kind"`
	Frequency     string       `json:"frequency"`
	Weekdays      []int        `json:"weekdays"`
	DayOfMonth    int          `json:"day_of_month"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       *time.Time   `json:"end_date"`
	LastGenerated *time.Time   `json:"last_generated"`
	Active        bool         `json:"active"`
	Template      TemplateData `json:"template"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	DeletedAt     *time.Time   `json:"deleted_at"`
	Version       int          `json:"version"`
}

const (
	MetricCompletedCount = "COMPLETED_COUNT"
	MetricCreatedCount   = "CREATED_COUNT"
	MetricTotalCount     = "TOTAL_COUNT"
)

const (
	GoalPeriodWeekly  = "WEEKLY"
	GoalPeriodMonthly = "MONTHLY"
	GoalPeriodCustom  = "CUSTOM"
)

type Goal struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Metric      string     `json:"metric"`
	Period      string     `json:"period"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	TargetCount int        `json:"target_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
	Version     int        `json:"version"`
}

type AuditEntry struct {
	ID         string    `json:"id"`
	UserID     *string   `json:"user_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   *string   `json:"entity_id"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}
