package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veridian/comply/internal/auth"
	"github.com/veridian/comply/internal/models"
	"github.com/veridian/comply/internal/queue"
	"github.com/veridian/comply/internal/reports"
	"github.com/veridian/comply/internal/rules"
	"github.com/veridian/comply/internal/scheduler"
	"github.com/veridian/comply/internal/store"
)

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

func queryLimit(r *http.Request, def int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Auth

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	tokens, err := s.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	tokens, err := s.authService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired refresh token")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := s.authService.Logout(r.Context(), claims.UserID, req.RefreshToken); err != nil {
		respondError(w, http.StatusInternalServerError, "logout_failed", "Failed to logout")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
		return
	}

	user, err := s.userStore.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userStore.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("listing users", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string    `json:"email"`
		Name     string    `json:"name"`
		Password string    `json:"password"`
		Role     auth.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "Email and password are required")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleUser
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to create user")
		return
	}

	user := &auth.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: hash,
		Role:     req.Role,
	}
	if err := s.userStore.CreateUser(r.Context(), user); err != nil {
		s.logger.Error("creating user", "email", req.Email, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Entities

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") != "false"

	entities, err := s.store.ListEntities(r.Context(), activeOnly)
	if err != nil {
		s.logger.Error("listing entities", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to list entities")
		return
	}
	respondJSON(w, http.StatusOK, entities)
}

func (s *Server) createEntity(w http.ResponseWriter, r *http.Request) {
	var entity models.EntityProfile
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if entity.Name == "" || entity.EntityType == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "Name and entity_type are required")
		return
	}

	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	entity.Active = true

	if err := s.store.CreateEntity(r.Context(), &entity); err != nil {
		s.logger.Error("creating entity", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to create entity")
		return
	}

	if err := s.requestRecalc(r.Context(), entity.ID, models.TriggerProfileChange, 0); err != nil {
		s.logger.Error("scheduling initial recalc", "entity_id", entity.ID, "error", err)
	}

	respondJSON(w, http.StatusCreated, entity)
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	entity, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.logger.Error("loading entity", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load entity")
		return
	}
	if entity == nil {
		respondError(w, http.StatusNotFound, "not_found", "Entity not found")
		return
	}

	respondJSON(w, http.StatusOK, entity)
}

func (s *Server) updateEntity(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	existing, err := s.store.GetEntity(r.Context(), id)
	if err != nil || existing == nil {
		respondError(w, http.StatusNotFound, "not_found", "Entity not found")
		return
	}

	var entity models.EntityProfile
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	entity.ID = id

	if err := s.store.UpdateEntity(r.Context(), &entity); err != nil {
		s.logger.Error("updating entity", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to update entity")
		return
	}

	if err := s.requestRecalc(r.Context(), id, models.TriggerProfileChange, 0); err != nil {
		s.logger.Error("scheduling recalc after profile change", "entity_id", id, "error", err)
	}

	respondJSON(w, http.StatusOK, entity)
}

func (s *Server) triggerRecalc(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	var req struct {
		Priority int `json:"priority"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	}

	if s.queue != nil {
		job := &queue.Job{
			EntityID: id,
			Trigger:  models.TriggerManual,
			Priority: req.Priority,
		}
		if err := s.queue.Enqueue(r.Context(), job); err != nil {
			s.logger.Error("enqueueing recalc", "entity_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "Failed to enqueue recalculation")
			return
		}
		respondJSON(w, http.StatusAccepted, job)
		return
	}

	state, err := s.engine.Recalculate(r.Context(), id, time.Now(), models.TriggerManual)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			respondError(w, http.StatusConflict, "conflict", "State was updated concurrently, retry")
			return
		}
		s.logger.Error("recalculating", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Recalculation failed")
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	state, err := s.store.GetState(r.Context(), id)
	if err != nil {
		s.logger.Error("loading state", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load state")
		return
	}
	if state == nil {
		respondError(w, http.StatusNotFound, "not_found", "No calculated state for entity")
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) listRequirements(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	state, err := s.store.GetState(r.Context(), id)
	if err != nil {
		s.logger.Error("loading state", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load state")
		return
	}
	if state == nil {
		respondError(w, http.StatusNotFound, "not_found", "No calculated state for entity")
		return
	}

	requirements := state.Requirements
	if status := models.RequirementStatus(r.URL.Query().Get("status")); status != "" {
		filtered := make(models.RequirementStates, 0, len(requirements))
		for _, req := range requirements {
			if req.Status == status {
				filtered = append(filtered, req)
			}
		}
		requirements = filtered
	}

	respondJSON(w, http.StatusOK, requirements)
}

func (s *Server) getStateHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	history, err := s.store.ListStateHistory(r.Context(), id, queryLimit(r, 50))
	if err != nil {
		s.logger.Error("loading state history", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load history")
		return
	}

	respondJSON(w, http.StatusOK, history)
}

func (s *Server) getCalculationLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	logs, err := s.store.ListCalculationLogs(r.Context(), id, queryLimit(r, 50))
	if err != nil {
		s.logger.Error("loading calculation logs", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load calculation logs")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

// Alerts

func (s *Server) listEntityAlerts(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	activeOnly := r.URL.Query().Get("active") != "false"

	alerts, err := s.store.ListAlerts(r.Context(), id, activeOnly)
	if err != nil {
		s.logger.Error("listing alerts", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to list alerts")
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

func (s *Server) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "alertID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid alert ID")
		return
	}

	claims, _ := auth.GetUserFromContext(r.Context())
	by := ""
	if claims != nil {
		by = claims.Email
	}

	if err := s.store.AcknowledgeAlert(r.Context(), id, by); err != nil {
		s.logger.Error("acknowledging alert", "alert_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to acknowledge alert")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "acknowledged"})
}

// Filings

func (s *Server) listFilings(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	filings, err := s.store.ListFilings(r.Context(), id, r.URL.Query().Get("rule_code"))
	if err != nil {
		s.logger.Error("listing filings", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to list filings")
		return
	}

	respondJSON(w, http.StatusOK, filings)
}

func (s *Server) recordFiling(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	var filing models.FilingRecord
	if err := json.NewDecoder(r.Body).Decode(&filing); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if filing.RuleCode == "" || filing.PeriodKey == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "rule_code and period_key are required")
		return
	}

	filing.EntityID = id
	if filing.Status == "" {
		filing.Status = models.FilingFiled
	}
	if filing.Status != models.FilingFiled && filing.Status != models.FilingWaived {
		respondError(w, http.StatusBadRequest, "invalid_request", "status must be 'filed' or 'waived'")
		return
	}
	if filing.FiledAt.IsZero() {
		filing.FiledAt = time.Now()
	}

	if err := s.store.CreateFiling(r.Context(), &filing); err != nil {
		s.logger.Error("recording filing", "entity_id", id, "rule_code", filing.RuleCode, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to record filing")
		return
	}

	if err := s.requestRecalc(r.Context(), id, models.TriggerFiling, 0); err != nil {
		s.logger.Error("scheduling recalc after filing", "entity_id", id, "error", err)
	}

	respondJSON(w, http.StatusCreated, filing)
}

// Rules

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = t
	}

	snap, err := s.catalog.Load(r.Context(), asOf)
	if err != nil {
		var verr *rules.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusConflict, "invalid_catalog", verr.Error())
			return
		}
		s.logger.Error("loading rule catalog", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load rules")
		return
	}

	respondJSON(w, http.StatusOK, snap.Rules)
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	rule, err := s.ruleStore.GetByCode(r.Context(), code, time.Now())
	if err != nil {
		s.logger.Error("loading rule", "code", code, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load rule")
		return
	}
	if rule == nil {
		respondError(w, http.StatusNotFound, "not_found", "Rule not found")
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) listRuleVersions(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	versions, err := s.ruleStore.ListVersions(r.Context(), code)
	if err != nil {
		s.logger.Error("loading rule versions", "code", code, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load rule versions")
		return
	}
	if len(versions) == 0 {
		respondError(w, http.StatusNotFound, "not_found", "Rule not found")
		return
	}

	respondJSON(w, http.StatusOK, versions)
}

func (s *Server) publishRule(w http.ResponseWriter, r *http.Request) {
	var rule models.ComplianceRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if rule.EffectiveFrom.IsZero() {
		rule.EffectiveFrom = time.Now()
	}

	if err := s.ruleStore.Publish(r.Context(), &rule); err != nil {
		var verr *rules.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, "invalid_rule", verr.Error())
			return
		}
		s.logger.Error("publishing rule", "code", rule.Code, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to publish rule")
		return
	}

	// Published rules change applicability, so every active entity gets
	// rescheduled.
	entities, err := s.store.ListEntities(r.Context(), true)
	if err != nil {
		s.logger.Error("listing entities after rule publish", "error", err)
	} else {
		for _, entity := range entities {
			if err := s.requestRecalc(r.Context(), entity.ID, models.TriggerRulePublish, 0); err != nil {
				s.logger.Error("scheduling recalc after rule publish", "entity_id", entity.ID, "error", err)
			}
		}
	}

	respondJSON(w, http.StatusCreated, rule)
}

// Reports

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entityID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid entity ID")
		return
	}

	format := reports.ReportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = reports.FormatPDF
	}
	if format != reports.FormatPDF && format != reports.FormatCSV {
		respondError(w, http.StatusBadRequest, "invalid_request", "format must be 'pdf' or 'csv'")
		return
	}

	report, err := s.reportGenerator.ComplianceSummary(r.Context(), id, format)
	if err != nil {
		s.logger.Error("generating report", "entity_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to generate report")
		return
	}

	w.Header().Set("Content-Type", report.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Data)
}

// Scheduled jobs

func (s *Server) listScheduledJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.schedulerStore.ListJobs(r.Context())
	if err != nil {
		s.logger.Error("listing jobs", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to list jobs")
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

func (s *Server) createScheduledJob(w http.ResponseWriter, r *http.Request) {
	var job scheduler.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if job.Name == "" || job.Schedule == "" || job.JobType == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "Name, schedule and job_type are required")
		return
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	if err := s.scheduler.AddJob(r.Context(), &job); err != nil {
		s.logger.Error("creating job", "job_name", job.Name, "error", err)
		respondError(w, http.StatusBadRequest, "invalid_job", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, job)
}

func (s *Server) getScheduledJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.schedulerStore.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "Job not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) updateScheduledJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var job scheduler.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	job.ID = jobID

	if err := s.scheduler.UpdateJob(r.Context(), &job); err != nil {
		s.logger.Error("updating job", "job_id", jobID, "error", err)
		respondError(w, http.StatusBadRequest, "invalid_job", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, job)
}

func (s *Server) deleteScheduledJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.scheduler.DeleteJob(r.Context(), jobID); err != nil {
		s.logger.Error("deleting job", "job_id", jobID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to delete job")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *Server) runScheduledJobNow(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.scheduler.RunJobNow(r.Context(), jobID); err != nil {
		respondError(w, http.StatusNotFound, "not_found", "Job not found")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"message": "job started"})
}

func (s *Server) getJobExecutions(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	executions, err := s.schedulerStore.GetJobExecutions(r.Context(), jobID, queryLimit(r, 20))
	if err != nil {
		s.logger.Error("loading job executions", "job_id", jobID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load executions")
		return
	}

	respondJSON(w, http.StatusOK, executions)
}

// Queue

func (s *Server) getQueueStats(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "queue_disabled", "Queue not configured")
		return
	}

	stats, err := s.queue.GetQueueStats(r.Context())
	if err != nil {
		s.logger.Error("loading queue stats", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Failed to load queue stats")
		return
	}

	workers, err := s.queue.GetActiveWorkers(r.Context(), 2*time.Minute)
	if err != nil {
		s.logger.Error("loading active workers", "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":    stats,
		"workers": workers,
	})
}
