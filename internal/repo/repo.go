package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldtrack/internal/models"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnknownKind = errors.New("unknown activity kind")
)

type Repo struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

// activityTable maps an activity kind to its table. Regular and OSI
// activities have identical shapes, so every query below is written
// once and parameterized here instead of duplicated per variant.
func activityTable(kind string) (string, error) {
	switch kind {
	case models.KindActivity:
		return "activities", nil
	case models.KindOSI:
		return "osi_activities", nil
	default:
		return "", ErrUnknownKind
	}
}

func (r *Repo) CreateUser(ctx context.Context, email, passwordHash, role string) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3) RETURNING id`, email, passwordHash, role).Scan(&id)
	return id, err
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.Pool.QueryRow(ctx, `SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := r.Pool.QueryRow(ctx, `SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE id=$1`, userID).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// ActivityFilter narrows ListActivities. A zero value lists everything
// that is not soft-deleted.
type ActivityFilter struct {
	UserID string // empty = all users (admin)
	Status string
	From   *time.Time
	To     *time.Time
}

const activityColumns = `id, user_id, title, team, site, city, notes, date, deadline, status, generated_by, created_at, updated_at, deleted_at, version`

func scanActivity(row pgx.Row) (models.Activity, error) {
	var a models.Activity
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Team, &a.Site, &a.City, &a.Notes, &a.Date, &a.Deadline, &a.Status, &a.GeneratedBy, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt, &a.Version)
	return a, err
}

func (r *Repo) CreateActivity(ctx context.Context, kind string, a models.Activity) (string, error) {
	table, err := activityTable(kind)
	if err != nil {
		return "", err
	}
	var id string
	err = r.Pool.QueryRow(ctx, fmt.Sprintf(`INSERT INTO %s (user_id, title, team, site, city, notes, date, deadline, status, generated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`, table),
		a.UserID, a.Title, a.Team, a.Site, a.City, a.Notes, a.Date, a.Deadline, a.Status, a.GeneratedBy).Scan(&id)
	return id, err
}

func (r *Repo) UpdateActivity(ctx context.Context, kind, id string, a models.Activity, ownerID string) error {
	table, err := activityTable(kind)
	if err != nil {
		return err
	}
	cmd, err := r.Pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET title=$1, team=$2, site=$3, city=$4, notes=$5, date=$6, deadline=$7, status=$8, updated_at=now(), version=version+1
		WHERE id=$9 AND deleted_at IS NULL AND ($10 = '' OR user_id::text = $10)`, table),
		a.Title, a.Team, a.Site, a.City, a.Notes, a.Date, a.Deadline, a.Status, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteActivity(ctx context.Context, kind, id, ownerID string) error {
	table, err := activityTable(kind)
	if err != nil {
		return err
	}
	cmd, err := r.Pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET deleted_at=now(), updated_at=now(), version=version+1
		WHERE id=$1 AND deleted_at IS NULL AND ($2 = '' OR user_id::text = $2)`, table), id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListActivities(ctx context.Context, kind string, f ActivityFilter) ([]models.Activity, error) {
	table, err := activityTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.Pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s
		WHERE deleted_at IS NULL
		  AND ($1 = '' OR user_id::text = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3::date IS NULL OR date >= $3)
		  AND ($4::date IS NULL OR date <= $4)
		ORDER BY date, created_at`, activityColumns, table),
		f.UserID, f.Status, f.From, f.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

const ruleColumns = `id, user_id, kind, frequency, weekdays, day_of_month, start_date, end_date, last_generated, active, template, created_at, updated_at, deleted_at, version`

func scanRule(row pgx.Row) (models.RecurrenceRule, error) {
	var rule models.RecurrenceRule
	var weekdays []int32
	var template []byte
	err := row.Scan(&rule.ID, &rule.UserID, &rule.Kind, &rule.Frequency, &weekdays, &rule.DayOfMonth, &rule.StartDate, &rule.EndDate, &rule.LastGenerated, &rule.Active, &template, &rule.CreatedAt, &rule.UpdatedAt, &rule.DeletedAt, &rule.Version)
	if err != nil {
		return rule, err
	}
	for _, wd := range weekdays {
		rule.Weekdays = append(rule.Weekdays, int(wd))
	}
	if len(template) > 0 {
		if err := json.Unmarshal(template, &rule.Template); err != nil {
			return rule, fmt.Errorf("decode rule template: %w", err)
		}
	}
	return rule, nil
}

func weekdaysParam(weekdays []int) []int32 {
	out := make([]int32, 0, len(weekdays))
	for _, wd := range weekdays {
		out = append(out, int32(wd))
	}
	return out
}

func (r *Repo) CreateRule(ctx context.Context, rule models.RecurrenceRule) (string, error) {
	template, err := json.Marshal(rule.Template)
	if err != nil {
		return "", err
	}
	var id string
	err = r.Pool.QueryRow(ctx, `INSERT INTO recurring_activities (user_id, kind, frequency, weekdays, day_of_month, start_date, end_date, active, template)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		rule.UserID, rule.Kind, rule.Frequency, weekdaysParam(rule.Weekdays), rule.DayOfMonth, rule.StartDate, rule.EndDate, rule.Active, template).Scan(&id)
	return id, err
}

func (r *Repo) UpdateRule(ctx context.Context, id string, rule models.RecurrenceRule, ownerID string) error {
	template, err := json.Marshal(rule.Template)
	if err != nil {
		return err
	}
	cmd, err := r.Pool.Exec(ctx, `UPDATE recurring_activities SET kind=$1, frequency=$2, weekdays=$3, day_of_month=$4, start_date=$5, end_date=$6, active=$7, template=$8, updated_at=now(), version=version+1
		WHERE id=$9 AND deleted_at IS NULL AND ($10 = '' OR user_id::text = $10)`,
		rule.Kind, rule.Frequency, weekdaysParam(rule.Weekdays), rule.DayOfMonth, rule.StartDate, rule.EndDate, rule.Active, template, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteRule(ctx context.Context, id, ownerID string) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE recurring_activities SET deleted_at=now(), updated_at=now(), version=version+1
		WHERE id=$1 AND deleted_at IS NULL AND ($2 = '' OR user_id::text = $2)`, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetRule(ctx context.Context, id, ownerID string) (models.RecurrenceRule, error) {
	rule, err := scanRule(r.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM recurring_activities
		WHERE id=$1 AND deleted_at IS NULL AND ($2 = '' OR user_id::text = $2)`, ruleColumns), id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RecurrenceRule{}, ErrNotFound
	}
	return rule, err
}

func (r *Repo) ListRules(ctx context.Context, ownerID string, onlyActive bool) ([]models.RecurrenceRule, error) {
	rows, err := r.Pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM recurring_activities
		WHERE deleted_at IS NULL AND ($1 = '' OR user_id::text = $1) AND (NOT $2 OR active)
		ORDER BY created_at`, ruleColumns), ownerID, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []models.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rule)
	}
	return res, rows.Err()
}

// MaterializeRule inserts one activity per expanded date and advances
// the rule watermark, all in one transaction. The unique index on
// (generated_by, date) plus ON CONFLICT DO NOTHING makes a replayed
// run a no-op even if two generators race on the same rule.
func (r *Repo) MaterializeRule(ctx context.Context, rule models.RecurrenceRule, dates []time.Time, runID string) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	table, err := activityTable(rule.Kind)
	if err != nil {
		return 0, err
	}
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, d := range dates {
		cmd, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (user_id, title, team, site, city, notes, date, status, generated_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (generated_by, date) WHERE generated_by IS NOT NULL DO NOTHING`, table),
			rule.UserID, rule.Template.Title, rule.Template.Team, rule.Template.Site, rule.Template.City, rule.Template.Notes, d, templateStatus(rule), rule.ID)
		if err != nil {
			return 0, err
		}
		inserted += int(cmd.RowsAffected())
	}

	watermark := dates[len(dates)-1]
	if _, err := tx.Exec(ctx, `UPDATE recurring_activities SET last_generated=$1, updated_at=now(), version=version+1
		WHERE id=$2 AND (last_generated IS NULL OR last_generated < $1)`, watermark, rule.ID); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO audit_log (user_id, action, entity_type, entity_id, details)
		VALUES ($1, 'generate', 'recurring_activity', $2, $3)`,
		rule.UserID, rule.ID, fmt.Sprintf(`{"run_id":%q,"generated":%d}`, runID, inserted)); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func templateStatus(rule models.RecurrenceRule) string {
	if rule.Template.Status != "" {
		return rule.Template.Status
	}
	return models.StatusPendente
}

const goalColumns = `id, user_id, name, kind, metric, period, start_date, end_date, target_count, created_at, updated_at, deleted_at, version`

func scanGoal(row pgx.Row) (models.Goal, error) {
	var g models.Goal
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Kind, &g.Metric, &g.Period, &g.StartDate, &g.EndDate, &g.TargetCount, &g.CreatedAt, &g.UpdatedAt, &g.DeletedAt, &g.Version)
	return g, err
}

func (r *Repo) CreateGoal(ctx context.Context, g models.Goal) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `INSERT INTO goals (user_id, name, kind, metric, period, start_date, end_date, target_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		g.UserID, g.Name, g.Kind, g.Metric, g.Period, g.StartDate, g.EndDate, g.TargetCount).Scan(&id)
	return id, err
}

func (r *Repo) UpdateGoal(ctx context.Context, id string, g models.Goal, ownerID string) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE goals SET name=$1, kind=$2, metric=$3, period=$4, start_date=$5, end_date=$6, target_count=$7, updated_at=now(), version=version+1
		WHERE id=$8 AND deleted_at IS NULL AND ($9 = '' OR user_id::text = $9)`,
		g.Name, g.Kind, g.Metric, g.Period, g.StartDate, g.EndDate, g.TargetCount, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteGoal(ctx context.Context, id, ownerID string) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE goals SET deleted_at=now(), updated_at=now(), version=version+1
		WHERE id=$1 AND deleted_at IS NULL AND ($2 = '' OR user_id::text = $2)`, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetGoal(ctx context.Context, id, ownerID string) (models.Goal, error) {
	g, err := scanGoal(r.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM goals
		WHERE id=$1 AND deleted_at IS NULL AND ($2 = '' OR user_id::text = $2)`, goalColumns), id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Goal{}, ErrNotFound
	}
	return g, err
}

func (r *Repo) ListGoals(ctx context.Context, ownerID string) ([]models.Goal, error) {
	rows, err := r.Pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM goals
		WHERE deleted_at IS NULL AND ($1 = '' OR user_id::text = $1) ORDER BY created_at`, goalColumns), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []models.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (r *Repo) InsertAudit(ctx context.Context, userID *string, action, entityType string, entityID *string, details string) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO audit_log (user_id, action, entity_type, entity_id, details)
		VALUES ($1,$2,$3,$4,$5)`, userID, action, entityType, entityID, details)
	return err
}

func (r *Repo) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.Pool.Query(ctx, `SELECT id, user_id, action, entity_type, entity_id, details, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
