package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fieldroute/internal/ingest"
	"fieldroute/internal/metrics"
	"fieldroute/internal/model"
	"fieldroute/internal/opt"
	"fieldroute/internal/store"
)

// JobsHandler handles POST/GET /v1/jobs.
func (s *Server) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			PlanDate string      `json:"planDate"`
			Jobs     []model.Job `json:"jobs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validatePlanDate(req.PlanDate); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid jobs request", err.Error(), r.URL.Path)
			return
		}
		if err := validateJobs(req.Jobs); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid jobs request", err.Error(), r.URL.Path)
			return
		}
		_, tenant := s.withTenant(r)
		created, err := s.Store.CreateJobs(r.Context(), tenant, req.PlanDate, req.Jobs)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create jobs failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"created": len(created), "jobs": created})
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		date := r.URL.Query().Get("date")
		if err := validatePlanDate(date); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid date", err.Error(), r.URL.Path)
			return
		}
		jobs, err := s.Store.ListJobs(r.Context(), tenant, date)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List jobs failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": jobs})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ImportJobsHandler handles POST /v1/jobs/import?date=: a CSV upload of the
// day's work orders, the format back offices export from the CRM.
func (s *Server) ImportJobsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	date := r.URL.Query().Get("date")
	if err := validatePlanDate(date); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date", err.Error(), r.URL.Path)
		return
	}
	jobs, err := ingest.ParseJobsCSV(r.Body, date)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid CSV upload", err.Error(), r.URL.Path)
		return
	}
	if err := validateJobs(jobs); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid CSV upload", err.Error(), r.URL.Path)
		return
	}
	_, tenant := s.withTenant(r)
	created, err := s.Store.CreateJobs(r.Context(), tenant, date, jobs)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Import jobs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"created": len(created), "jobs": created})
}

// TechniciansHandler handles POST/GET /v1/technicians.
func (s *Server) TechniciansHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Technicians []model.Technician `json:"technicians"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateTechnicians(req.Technicians); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid technicians request", err.Error(), r.URL.Path)
			return
		}
		_, tenant := s.withTenant(r)
		created, err := s.Store.CreateTechnicians(r.Context(), tenant, req.Technicians)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create technicians failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"created": len(created), "technicians": created})
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		techs, err := s.Store.ListTechnicians(r.Context(), tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List technicians failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": techs})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OptimizeHandler handles POST /v1/optimize: build, persist and publish the
// day's plan for the calling tenant.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		_, req.TenantID = s.withTenant(r)
	}
	if err := validatePlanDate(req.PlanDate); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	if !s.Limiter.Allow(req.TenantID) {
		writeProblem(w, http.StatusTooManyRequests, "Rate limited", "too many optimize runs, slow down", r.URL.Path)
		return
	}

	jobs, err := s.Store.ListJobs(r.Context(), req.TenantID, req.PlanDate)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load jobs failed", err.Error(), r.URL.Path)
		return
	}
	techs, err := s.Store.ListTechnicians(r.Context(), req.TenantID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load technicians failed", err.Error(), r.URL.Path)
		return
	}

	start := time.Now()
	plan, err := s.Planner.BuildPlan(req.TenantID, req.PlanDate, jobs, techs, req.CompareBaseline)
	if err != nil {
		if errors.Is(err, opt.ErrNoActiveTechnicians) {
			metrics.OptimizeRuns.WithLabelValues(req.TenantID, "no_technicians").Inc()
			writeProblem(w, http.StatusUnprocessableEntity, "No active technicians", err.Error(), r.URL.Path)
			return
		}
		metrics.OptimizeRuns.WithLabelValues(req.TenantID, "error").Inc()
		writeProblem(w, http.StatusInternalServerError, "Optimize failed", err.Error(), r.URL.Path)
		return
	}
	elapsed := time.Since(start)

	plan, err = s.Store.SavePlan(r.Context(), plan)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
		return
	}
	applied := 0
	if req.Apply {
		applied, err = s.Store.ApplyPlan(r.Context(), plan)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Apply plan failed", err.Error(), r.URL.Path)
			return
		}
	}

	metrics.OptimizeRuns.WithLabelValues(req.TenantID, "ok").Inc()
	metrics.OptimizeDuration.Observe(elapsed.Seconds())
	metrics.UnassignedJobs.WithLabelValues(req.TenantID).Set(float64(len(plan.Unassigned)))
	opt.RecordRun(req.TenantID, req.PlanDate, opt.RunStats{
		Jobs:            plan.Summary.Jobs,
		Routes:          plan.Summary.Routes,
		Unassigned:      plan.Summary.Unassigned,
		Efficiency:      plan.Summary.Efficiency,
		OverHoursRoutes: plan.Summary.OverHoursRoutes,
		ElapsedMs:       elapsed.Milliseconds(),
	})
	s.Log.Info("plan built",
		zap.String("tenant", req.TenantID),
		zap.String("planDate", req.PlanDate),
		zap.Int("jobs", plan.Summary.Jobs),
		zap.Int("routes", plan.Summary.Routes),
		zap.Int("unassigned", plan.Summary.Unassigned),
		zap.Float64("efficiency", plan.Summary.Efficiency),
		zap.Duration("elapsed", elapsed),
	)

	event := map[string]any{
		"planId":     plan.ID,
		"planDate":   plan.PlanDate,
		"routes":     plan.Summary.Routes,
		"unassigned": plan.Summary.Unassigned,
		"efficiency": plan.Summary.Efficiency,
		"applied":    req.Apply,
	}
	s.Broker.Publish(plan.TenantID, plan.PlanDate, PlanEvent{Type: "plan.updated", Data: event})
	s.Pub.Emit(r.Context(), plan.TenantID, "plan.updated", event)

	writeJSON(w, http.StatusOK, map[string]any{"plan": plan, "applied": applied})
}

// PlansHandler handles GET /v1/plans/{date} and the SSE stream at
// /v1/plans/{date}/events/stream.
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing plan date", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	date := parts[0]
	if err := validatePlanDate(date); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date", err.Error(), r.URL.Path)
		return
	}
	if len(parts) == 3 && parts[1] == "events" && parts[2] == "stream" {
		s.planEventsStream(w, r, date)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	plan, err := s.Store.GetPlan(r.Context(), tenant, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Plan not found", "no plan for "+date, r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) planEventsStream(w http.ResponseWriter, r *http.Request, date string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	_, tenant := s.withTenant(r)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(tenant, date)
	defer s.Broker.Unsubscribe(tenant, date, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"planDate\":%q,\"ts\":%q}\n\n", date, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	_, tenant := s.withTenant(r)
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		req.TenantID = tenant
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		subs, err := s.Store.ListSubscriptions(r.Context(), tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": subs})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing subscription id", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	if err := s.Store.DeleteSubscription(r.Context(), tenant, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Subscription not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics?date= returning the
// latest optimizer run stats for the tenant and date.
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	date := r.URL.Query().Get("date")
	if err := validatePlanDate(date); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date", err.Error(), r.URL.Path)
		return
	}
	st, ok := opt.LastRun(tenant, date)
	if !ok {
		writeProblem(w, http.StatusNotFound, "No runs recorded", "no optimizer run for "+date, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
