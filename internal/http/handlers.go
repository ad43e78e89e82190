package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldtrack/internal/auth"
	"fieldtrack/internal/models"
	"fieldtrack/internal/repo"
	"fieldtrack/internal/report"
	"fieldtrack/internal/schedule"
	"fieldtrack/internal/service"
)

const maxBodyBytes = 1 << 20

type FlexTime struct {
	time.Time
}

func (ft *FlexTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, ok := schedule.ParseDate(s); ok {
		ft.Time = t
		return nil
	}
	return errors.New("invalid date format")
}

func (ft *FlexTime) ToTimePtr() *time.Time {
	if ft == nil || ft.Time.IsZero() {
		return nil
	}
	t := ft.Time
	return &t
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
}

type entityResponse struct {
	ID string `json:"id"`
}

type activityRequest struct {
	Title    string    `json:"title"`
	Team     string    `json:"team"`
	Site     string    `json:"site"`
	City     string    `json:"city"`
	Notes    string    `json:"notes"`
	Date     *FlexTime `json:"date"`
	Deadline *FlexTime `json:"deadline"`
	Status   string    `json:"status"`
}

type ruleRequest struct {
	Kind       string              `json:"kind"`
	Frequency  string              `json:"frequency"`
	Weekdays   []int               `json:"weekdays"`
	DayOfMonth int                 `json:"day_of_month"`
	StartDate  *FlexTime           `json:"start_date"`
	EndDate    *FlexTime           `json:"end_date"`
	Active     *bool               `json:"active"`
	Template   models.TemplateData `json:"template"`
}

type goalRequest struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Metric      string    `json:"metric"`
	Period      string    `json:"period"`
	StartDate   *FlexTime `json:"start_date"`
	EndDate     *FlexTime `json:"end_date"`
	TargetCount int       `json:"target_count"`
}

// statusOrDefault keeps a blank status from ever reaching the tables;
// both create and update fall back to PENDENTE.
func statusOrDefault(status string) string {
	if status == "" {
		return models.StatusPendente
	}
	return status
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password required")
		return
	}
	userID, err := a.Service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "REGISTRATION_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{ID: userID})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, user, err := a.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, Role: user.Role})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	user, err := a.Repo.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// scope returns the acting user and the ownership filter: admins see
// every row, everyone else only their own.
func scope(r *http.Request) (userID, ownerID string) {
	userID, _ = auth.UserIDFromContext(r.Context())
	role, _ := auth.RoleFromContext(r.Context())
	if role == models.RoleAdmin {
		return userID, ""
	}
	return userID, userID
}

func activityFilter(r *http.Request, ownerID string) (repo.ActivityFilter, bool) {
	f := repo.ActivityFilter{UserID: ownerID, Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("from"); raw != "" {
		d, ok := schedule.ParseDate(raw)
		if !ok {
			return f, false
		}
		f.From = &d
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		d, ok := schedule.ParseDate(raw)
		if !ok {
			return f, false
		}
		f.To = &d
	}
	return f, true
}

func (a *API) handleListActivities(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ownerID := scope(r)
		f, ok := activityFilter(r, ownerID)
		if !ok {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid from/to date")
			return
		}
		activities, err := a.Repo.ListActivities(r.Context(), kind, f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list activities")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
	}
}

func (a *API) handleCreateActivity(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := scope(r)
		var req activityRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Title == "" || req.Date.ToTimePtr() == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title and date required")
			return
		}
		activity := models.Activity{
			UserID:   userID,
			Title:    req.Title,
			Team:     req.Team,
			Site:     req.Site,
			City:     req.City,
			Notes:    req.Notes,
			Date:     *req.Date.ToTimePtr(),
			Deadline: req.Deadline.ToTimePtr(),
			Status:   statusOrDefault(req.Status),
		}
		id, err := a.Repo.CreateActivity(r.Context(), kind, activity)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create activity")
			return
		}
		a.audit(r, "create", kind, id)
		writeJSON(w, http.StatusCreated, entityResponse{ID: id})
	}
}

func (a *API) handleUpdateActivity(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		_, ownerID := scope(r)
		var req activityRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Title == "" || req.Date.ToTimePtr() == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title and date required")
			return
		}
		activity := models.Activity{
			Title:    req.Title,
			Team:     req.Team,
			Site:     req.Site,
			City:     req.City,
			Notes:    req.Notes,
			Date:     *req.Date.ToTimePtr(),
			Deadline: req.Deadline.ToTimePtr(),
			Status:   statusOrDefault(req.Status),
		}
		if err := a.Repo.UpdateActivity(r.Context(), kind, id, activity, ownerID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Activity not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update activity")
			return
		}
		a.audit(r, "update", kind, id)
		writeJSON(w, http.StatusOK, entityResponse{ID: id})
	}
}

func (a *API) handleDeleteActivity(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		_, ownerID := scope(r)
		if err := a.Repo.DeleteActivity(r.Context(), kind, id, ownerID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Activity not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete activity")
			return
		}
		a.audit(r, "delete", kind, id)
		writeJSON(w, http.StatusOK, entityResponse{ID: id})
	}
}

func (a *API) handleDeadlines(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ownerID := scope(r)
		f, ok := activityFilter(r, ownerID)
		if !ok {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid from/to date")
			return
		}
		summary, err := a.Service.DeadlineSummary(r.Context(), kind, f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to classify deadlines")
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func ruleFromRequest(req ruleRequest, userID string) models.RecurrenceRule {
	kind := req.Kind
	if kind == "" {
		kind = models.KindActivity
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule := models.RecurrenceRule{
		UserID:     userID,
		Kind:       kind,
		Frequency:  req.Frequency,
		Weekdays:   req.Weekdays,
		DayOfMonth: req.DayOfMonth,
		EndDate:    req.EndDate.ToTimePtr(),
		Active:     active,
		Template:   req.Template,
	}
	if start := req.StartDate.ToTimePtr(); start != nil {
		rule.StartDate = *start
	}
	return rule
}

func validRuleKind(kind string) bool {
	return kind == models.KindActivity || kind == models.KindOSI
}

func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	_, ownerID := scope(r)
	rules, err := a.Repo.ListRules(r.Context(), ownerID, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	userID, _ := scope(r)
	var req ruleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule := ruleFromRequest(req, userID)
	if rule.StartDate.IsZero() || req.Template.Title == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Start date and template title required")
		return
	}
	if !validRuleKind(rule.Kind) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Kind must be activity or osi")
		return
	}
	if err := schedule.ValidateRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	id, err := a.Repo.CreateRule(r.Context(), rule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create rule")
		return
	}
	a.audit(r, "create", "recurring_activity", id)
	writeJSON(w, http.StatusCreated, entityResponse{ID: id})
}

func (a *API) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, ownerID := scope(r)
	var req ruleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule := ruleFromRequest(req, userID)
	if rule.StartDate.IsZero() || req.Template.Title == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Start date and template title required")
		return
	}
	if !validRuleKind(rule.Kind) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Kind must be activity or osi")
		return
	}
	if err := schedule.ValidateRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := a.Repo.UpdateRule(r.Context(), id, rule, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update rule")
		return
	}
	a.audit(r, "update", "recurring_activity", id)
	writeJSON(w, http.StatusOK, entityResponse{ID: id})
}

func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, ownerID := scope(r)
	if err := a.Repo.DeleteRule(r.Context(), id, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete rule")
		return
	}
	a.audit(r, "delete", "recurring_activity", id)
	writeJSON(w, http.StatusOK, entityResponse{ID: id})
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id") // empty for the all-rules route
	_, ownerID := scope(r)
	result, err := a.Service.GenerateRecurring(r.Context(), ownerID, ruleID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate activities")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListGoals(w http.ResponseWriter, r *http.Request) {
	_, ownerID := scope(r)
	goals, err := a.Repo.ListGoals(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list goals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func goalFromRequest(req goalRequest, userID string) models.Goal {
	kind := req.Kind
	if kind == "" {
		kind = models.KindActivity
	}
	return models.Goal{
		UserID:      userID,
		Name:        req.Name,
		Kind:        kind,
		Metric:      req.Metric,
		Period:      req.Period,
		StartDate:   req.StartDate.ToTimePtr(),
		EndDate:     req.EndDate.ToTimePtr(),
		TargetCount: req.TargetCount,
	}
}

func (a *API) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, _ := scope(r)
	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name required")
		return
	}
	goal := goalFromRequest(req, userID)
	if !validRuleKind(goal.Kind) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Kind must be activity or osi")
		return
	}
	if err := report.ValidateGoal(goal); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	id, err := a.Repo.CreateGoal(r.Context(), goal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create goal")
		return
	}
	a.audit(r, "create", "goal", id)
	writeJSON(w, http.StatusCreated, entityResponse{ID: id})
}

func (a *API) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, ownerID := scope(r)
	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	goal := goalFromRequest(req, userID)
	if !validRuleKind(goal.Kind) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Kind must be activity or osi")
		return
	}
	if err := report.ValidateGoal(goal); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := a.Repo.UpdateGoal(r.Context(), id, goal, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Goal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update goal")
		return
	}
	a.audit(r, "update", "goal", id)
	writeJSON(w, http.StatusOK, entityResponse{ID: id})
}

func (a *API) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, ownerID := scope(r)
	if err := a.Repo.DeleteGoal(r.Context(), id, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Goal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete goal")
		return
	}
	a.audit(r, "delete", "goal", id)
	writeJSON(w, http.StatusOK, entityResponse{ID: id})
}

func (a *API) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, ownerID := scope(r)
	progress, err := a.Service.GoalProgress(r.Context(), id, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Goal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute progress")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (a *API) handleActivityReport(w http.ResponseWriter, r *http.Request) {
	_, ownerID := scope(r)
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = models.KindActivity
	}
	f, ok := activityFilter(r, ownerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid from/to date")
		return
	}
	groups, err := a.Service.ActivityBreakdown(r.Context(), kind, r.URL.Query().Get("group_by"), f)
	if err != nil {
		if errors.Is(err, service.ErrUnknownGroupKey) || errors.Is(err, repo.ErrUnknownKind) {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.Repo.ListAudit(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list audit log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// audit records a mutation best-effort; a failed audit write never
// fails the request that caused it.
func (a *API) audit(r *http.Request, action, entityType, entityID string) {
	userID, ok := auth.UserIDFromContext(r.Context())
	var actor *string
	if ok {
		actor = &userID
	}
	_ = a.Repo.InsertAudit(r.Context(), actor, action, entityType, &entityID, "{}")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid payload")
		return false
	}
	return true
}
