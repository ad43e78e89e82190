package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"fieldtrack/internal/auth"
	"fieldtrack/internal/models"
	"fieldtrack/internal/repo"
	"fieldtrack/internal/report"
	"fieldtrack/internal/schedule"
)

type Service struct {
	Repo     *repo.Repo
	Auth     *auth.Manager
	TokenTTL time.Duration
	// HorizonDays extends generation runs past today.
	HorizonDays int
	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func New(repository *repo.Repo, authManager *auth.Manager, horizonDays int) *Service {
	return &Service{
		Repo:        repository,
		Auth:        authManager,
		TokenTTL:    time.Hour,
		HorizonDays: horizonDays,
		Now:         time.Now,
	}
}

func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	hash, err := s.Auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	// Self-service signups always get the lowest role; admins and
	// gerentes are promoted out of band.
	return s.Repo.CreateUser(ctx, email, hash, models.RoleAnalista)
}

func (s *Service) Login(ctx context.Context, email, password string) (string, models.User, error) {
	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", models.User{}, err
	}
	if err := s.Auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", models.User{}, errors.New("invalid credentials")
	}
	token, err := s.Auth.GenerateToken(user.ID, user.Role, s.TokenTTL)
	if err != nil {
		return "", models.User{}, err
	}
	return token, user, nil
}

type GenerationResult struct {
	RunID     string `json:"run_id"`
	Rules     int    `json:"rules"`
	Generated int    `json:"generated"`
}

// GenerateRecurring expands every due rule (or a single one when
// ruleID is set) up to today plus the horizon and materializes the
// yielded dates as activity rows. The expander is pure and the
// watermark advances transactionally, so re-running is always safe.
func (s *Service) GenerateRecurring(ctx context.Context, ownerID, ruleID string) (GenerationResult, error) {
	result := GenerationResult{RunID: uuid.NewString()}

	var rules []models.RecurrenceRule
	if ruleID != "" {
		rule, err := s.Repo.GetRule(ctx, ruleID, ownerID)
		if err != nil {
			return result, err
		}
		rules = []models.RecurrenceRule{rule}
	} else {
		var err error
		rules, err = s.Repo.ListRules(ctx, ownerID, true)
		if err != nil {
			return result, err
		}
	}

	until := schedule.Day(s.Now()).AddDate(0, 0, s.HorizonDays)
	for _, rule := range rules {
		dates := schedule.Expand(rule, rule.StartDate, until)
		if len(dates) == 0 {
			continue
		}
		inserted, err := s.Repo.MaterializeRule(ctx, rule, dates, result.RunID)
		if err != nil {
			return result, err
		}
		result.Rules++
		result.Generated += inserted
	}
	log.Printf("generation run %s: %d rules, %d activities", result.RunID, result.Rules, result.Generated)
	return result, nil
}

// DeadlineSummary classifies every open activity against now and
// returns the rows bucketed by urgency.
type DeadlineSummary struct {
	Counts map[schedule.DeadlineStatus]int `json:"counts"`
	Items  []ClassifiedActivity            `json:"items"`
}

type ClassifiedActivity struct {
	Activity models.Activity   `json:"activity"`
	Deadline schedule.Deadline `json:"deadline"`
}

func (s *Service) DeadlineSummary(ctx context.Context, kind string, f repo.ActivityFilter) (DeadlineSummary, error) {
	activities, err := s.Repo.ListActivities(ctx, kind, f)
	if err != nil {
		return DeadlineSummary{}, err
	}
	now := s.Now()
	summary := DeadlineSummary{Counts: map[schedule.DeadlineStatus]int{}}
	for _, a := range activities {
		d := schedule.ClassifyDeadline(a.Deadline, a.Status, now)
		summary.Counts[d.Status]++
		if d.Status != schedule.DeadlineNotApplicable {
			summary.Items = append(summary.Items, ClassifiedActivity{Activity: a, Deadline: d})
		}
	}
	return summary, nil
}

// ActivityBreakdown groups activities by one of the report dimensions.
func (s *Service) ActivityBreakdown(ctx context.Context, kind, groupBy string, f repo.ActivityFilter) ([]report.Group, error) {
	keyFn, err := groupKey(groupBy)
	if err != nil {
		return nil, err
	}
	activities, err := s.Repo.ListActivities(ctx, kind, f)
	if err != nil {
		return nil, err
	}
	return report.Aggregate(activities, keyFn), nil
}

var ErrUnknownGroupKey = errors.New("unknown group_by key")

func groupKey(groupBy string) (func(models.Activity) string, error) {
	switch groupBy {
	case "team":
		return func(a models.Activity) string { return a.Team }, nil
	case "status":
		return func(a models.Activity) string { return a.Status }, nil
	case "city":
		return func(a models.Activity) string { return a.City }, nil
	case "site":
		return func(a models.Activity) string { return a.Site }, nil
	default:
		return nil, ErrUnknownGroupKey
	}
}

// GoalProgress recomputes a goal's live progress from the activity
// table it targets.
func (s *Service) GoalProgress(ctx context.Context, goalID, ownerID string) (report.Progress, error) {
	goal, err := s.Repo.GetGoal(ctx, goalID, ownerID)
	if err != nil {
		return report.Progress{}, err
	}
	activities, err := s.Repo.ListActivities(ctx, goal.Kind, repo.ActivityFilter{UserID: goal.UserID})
	if err != nil {
		return report.Progress{}, err
	}
	return report.GoalProgress(goal, activities, s.Now()), nil
}
