package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldtrack/internal/models"
)

func setupTestRepo(t *testing.T) (*Repo, func()) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	if err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	if err := createTestTables(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("create tables: %v", err)
	}
	repo := New(pool)
	return repo, func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	}
}

func createTestTables(ctx context.Context, pool *pgxpool.Pool) error {
	queries := []string{
		`CREATE TABLE users (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), email text, password_hash text, role text DEFAULT 'analista', created_at timestamptz DEFAULT now(), updated_at timestamptz DEFAULT now())`,
		`CREATE TABLE recurring_activities (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, kind text DEFAULT 'activity', frequency text, weekdays smallint[], day_of_month smallint DEFAULT 0, start_date date, end_date date, last_generated date, active boolean DEFAULT true, template jsonb DEFAULT '{}'::jsonb, created_at timestamptz DEFAULT now(), updated_at timestamptz DEFAULT now(), deleted_at timestamptz, version int DEFAULT 1)`,
		`CREATE TABLE activities (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, title text, team text DEFAULT '', site text DEFAULT '', city text DEFAULT '', notes text DEFAULT '', date date, deadline date, status text DEFAULT 'PENDENTE', generated_by uuid, created_at timestamptz DEFAULT now(), updated_at timestamptz DEFAULT now(), deleted_at timestamptz, version int DEFAULT 1)`,
		`CREATE TABLE osi_activities (LIKE activities INCLUDING ALL)`,
		`CREATE UNIQUE INDEX activities_generated_unique ON activities (generated_by, date) WHERE generated_by IS NOT NULL`,
		`CREATE UNIQUE INDEX osi_activities_generated_unique ON osi_activities (generated_by, date) WHERE generated_by IS NOT NULL`,
		`CREATE TABLE goals (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, name text, kind text DEFAULT 'activity', metric text, period text, start_date date, end_date date, target_count int, created_at timestamptz DEFAULT now(), updated_at timestamptz DEFAULT now(), deleted_at timestamptz, version int DEFAULT 1)`,
		`CREATE TABLE audit_log (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, action text, entity_type text, entity_id uuid, details jsonb DEFAULT '{}'::jsonb, created_at timestamptz DEFAULT now())`,
	}
	for _, query := range queries {
		if _, err := pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func testUser(t *testing.T, r *Repo) string {
	t.Helper()
	id, err := r.CreateUser(context.Background(), fmt.Sprintf("u%d@test.com", time.Now().UnixNano()), "x", models.RoleAnalista)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	return id
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMaterializeRuleAdvancesWatermark(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := testUser(t, r)
	ruleID, err := r.CreateRule(ctx, models.RecurrenceRule{
		UserID:    userID,
		Kind:      models.KindActivity,
		Frequency: "DAILY",
		StartDate: day("2025-01-01"),
		Active:    true,
		Template:  models.TemplateData{Title: "Vistoria diária", Team: "Equipe Norte"},
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	rule, err := r.GetRule(ctx, ruleID, userID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}

	dates := []time.Time{day("2025-01-01"), day("2025-01-02"), day("2025-01-03")}
	inserted, err := r.MaterializeRule(ctx, rule, dates, "run-1")
	if err != nil || inserted != 3 {
		t.Fatalf("first run: inserted=%d err=%v", inserted, err)
	}

	// Replaying the exact same dates must insert nothing.
	inserted, err = r.MaterializeRule(ctx, rule, dates, "run-2")
	if err != nil || inserted != 0 {
		t.Fatalf("replay should be a no-op: inserted=%d err=%v", inserted, err)
	}

	rule, err = r.GetRule(ctx, ruleID, userID)
	if err != nil {
		t.Fatalf("reload rule: %v", err)
	}
	if rule.LastGenerated == nil || !rule.LastGenerated.Equal(day("2025-01-03")) {
		t.Fatalf("watermark not advanced: %v", rule.LastGenerated)
	}

	acts, err := r.ListActivities(ctx, models.KindActivity, ActivityFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("expected 3 generated activities, got %d", len(acts))
	}
	if acts[0].Title != "Vistoria diária" || acts[0].Team != "Equipe Norte" {
		t.Fatalf("template not applied: %+v", acts[0])
	}
	if acts[0].GeneratedBy == nil || *acts[0].GeneratedBy != ruleID {
		t.Fatalf("generated_by not set: %+v", acts[0])
	}
}

func TestMaterializeRuleOverlappingRun(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := testUser(t, r)
	ruleID, err := r.CreateRule(ctx, models.RecurrenceRule{
		UserID:    userID,
		Kind:      models.KindOSI,
		Frequency: "DAILY",
		StartDate: day("2025-03-01"),
		Active:    true,
		Template:  models.TemplateData{Title: "Inspeção OSI"},
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	rule, err := r.GetRule(ctx, ruleID, userID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}

	inserted, err := r.MaterializeRule(ctx, rule, []time.Time{day("2025-03-01"), day("2025-03-02")}, "run-1")
	if err != nil || inserted != 2 {
		t.Fatalf("first run: inserted=%d err=%v", inserted, err)
	}

	// A run overlapping already-materialized dates only inserts the
	// new ones; the existing rows hit the (generated_by, date) index.
	inserted, err = r.MaterializeRule(ctx, rule, []time.Time{day("2025-03-02"), day("2025-03-03")}, "run-2")
	if err != nil || inserted != 1 {
		t.Fatalf("overlapping run: inserted=%d err=%v", inserted, err)
	}

	acts, err := r.ListActivities(ctx, models.KindOSI, ActivityFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("expected 3 distinct instances, got %d", len(acts))
	}
}

func TestActivityOwnershipScoping(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	alice := testUser(t, r)
	bob := testUser(t, r)

	id, err := r.CreateActivity(ctx, models.KindActivity, models.Activity{
		UserID: alice, Title: "Medição", Date: day("2025-02-01"), Status: models.StatusPendente,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Bob cannot touch Alice's row.
	if err := r.DeleteActivity(ctx, models.KindActivity, id, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	// Admin scope (empty owner) can.
	if err := r.DeleteActivity(ctx, models.KindActivity, id, ""); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	// Soft-deleted rows disappear from listings.
	acts, err := r.ListActivities(ctx, models.KindActivity, ActivityFilter{UserID: alice})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(acts) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(acts))
	}
}

func TestActivityKindsAreSeparate(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := testUser(t, r)
	if _, err := r.CreateActivity(ctx, models.KindOSI, models.Activity{
		UserID: userID, Title: "OSI 42", Date: day("2025-02-01"), Status: models.StatusPendente,
	}); err != nil {
		t.Fatalf("create osi: %v", err)
	}

	regular, err := r.ListActivities(ctx, models.KindActivity, ActivityFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list regular: %v", err)
	}
	osi, err := r.ListActivities(ctx, models.KindOSI, ActivityFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list osi: %v", err)
	}
	if len(regular) != 0 || len(osi) != 1 {
		t.Fatalf("kind separation broken: regular=%d osi=%d", len(regular), len(osi))
	}

	if _, err := r.ListActivities(ctx, "other", ActivityFilter{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestListActivitiesDateFilter(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := testUser(t, r)
	for _, d := range []string{"2025-01-10", "2025-01-15", "2025-01-20"} {
		if _, err := r.CreateActivity(ctx, models.KindActivity, models.Activity{
			UserID: userID, Title: "A " + d, Date: day(d), Status: models.StatusPendente,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	from := day("2025-01-12")
	to := day("2025-01-18")
	acts, err := r.ListActivities(ctx, models.KindActivity, ActivityFilter{UserID: userID, From: &from, To: &to})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(acts) != 1 || !acts[0].Date.Equal(day("2025-01-15")) {
		t.Fatalf("date filter wrong: %+v", acts)
	}
}

func TestGoalRoundTrip(t *testing.T) {
	r, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := testUser(t, r)
	id, err := r.CreateGoal(ctx, models.Goal{
		UserID: userID, Name: "Meta semanal", Kind: models.KindActivity,
		Metric: models.MetricCompletedCount, Period: models.GoalPeriodWeekly, TargetCount: 10,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	g, err := r.GetGoal(ctx, id, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.Name != "Meta semanal" || g.TargetCount != 10 {
		t.Fatalf("unexpected goal: %+v", g)
	}
	if err := r.DeleteGoal(ctx, id, userID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetGoal(ctx, id, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
