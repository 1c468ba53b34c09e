package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/testbank/internal/bank"
	"github.com/felixgeelhaar/testbank/internal/config"
	"github.com/felixgeelhaar/testbank/internal/domain"
	"github.com/felixgeelhaar/testbank/internal/grader"
	"github.com/felixgeelhaar/testbank/internal/queue"
)

// Server is the testbank daemon HTTP server. It exposes the question bank
// and the grading pipeline over a local REST API.
type Server struct {
	cfg    *config.LocalConfig
	server *http.Server
	router *http.ServeMux

	bank     *bank.Bank
	grader   *grader.Grader
	attempts domain.AttemptStore
	producer *queue.Producer
}

// ServerConfig holds the services a server needs. Attempts and Producer are
// optional: without a store checks are not persisted, without a producer the
// async check endpoint is unavailable.
type ServerConfig struct {
	Config   *config.LocalConfig
	Bank     *bank.Bank
	Grader   *grader.Grader
	Attempts domain.AttemptStore
	Producer *queue.Producer
}

// NewServer creates a daemon server around already-constructed services.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Bank == nil || cfg.Grader == nil {
		return nil, fmt.Errorf("bank and grader are required")
	}

	s := &Server{
		cfg:      cfg.Config,
		router:   http.NewServeMux(),
		bank:     cfg.Bank,
		grader:   cfg.Grader,
		attempts: cfg.Attempts,
		producer: cfg.Producer,
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	handler := recoveryMiddleware(correlationIDMiddleware(loggingMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Question bank
	s.router.HandleFunc("GET /v1/questions", s.handleListQuestions)
	s.router.HandleFunc("GET /v1/questions/{tag}", s.handleGetQuestion)
	s.router.HandleFunc("GET /v1/groups", s.handleListGroups)
	s.router.HandleFunc("POST /v1/groups/{name}/draw", s.handleDrawGroup)
	s.router.HandleFunc("POST /v1/reload", s.handleReload)
	s.router.HandleFunc("GET /v1/stats", s.handleStats)

	// Grading
	s.router.HandleFunc("POST /v1/check", s.handleCheck)
	s.router.HandleFunc("GET /v1/attempts", s.handleListAttempts)
	s.router.HandleFunc("GET /v1/attempts/{id}", s.handleGetAttempt)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	stats := s.bank.Stats()
	slog.Info("starting testbank daemon",
		"addr", s.server.Addr,
		"questions", stats.Questions,
		"groups", stats.Groups,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "running",
		"version": "0.1.0",
		"runner":  s.cfg.Runner.Executor,
		"bank":    s.bank.Stats(),
	})
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.bank.Questions()

	result := make([]map[string]interface{}, 0, len(questions))
	for _, q := range questions {
		result = append(result, map[string]interface{}{
			"name": q.Name,
			"kind": q.Kind,
			"id":   q.ID(),
			"tag":  q.Tag(),
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"questions": result,
	})
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")

	q, err := s.bank.Find(tag)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "question not found", err)
		return
	}

	text, err := q.Render()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to render question", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"name":  q.Name,
		"kind":  q.Kind,
		"id":    q.ID(),
		"tag":   q.Tag(),
		"text":  text,
		"cases": len(q.Cases),
	})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.bank.Groups()

	result := make([]map[string]interface{}, 0, len(groups))
	for _, g := range groups {
		members := make([]string, 0, len(g.Members))
		for _, q := range g.Members {
			members = append(members, q.Name)
		}
		result = append(result, map[string]interface{}{
			"name":    g.Name,
			"pick":    g.Pick,
			"members": members,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"groups": result,
	})
}

func (s *Server) handleDrawGroup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	g, err := s.bank.FindGroup(name)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "group not found", err)
		return
	}

	drawn := g.Draw()
	result := make([]map[string]interface{}, 0, len(drawn))
	for _, q := range drawn {
		text, err := q.Render()
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, "failed to render question", err)
			return
		}
		result = append(result, map[string]interface{}{
			"name": q.Name,
			"tag":  q.Tag(),
			"text": text,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"group":     name,
		"questions": result,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.bank.Load(); err != nil {
		s.jsonError(w, http.StatusUnprocessableEntity, "reload failed", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"bank":     s.bank.Stats(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.bank.Stats())
}

// Grading handlers

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag    string `json:"tag,omitempty"`
		Source string `json:"source"`
		Async  bool   `json:"async,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Source == "" {
		s.jsonError(w, http.StatusBadRequest, "source is required", nil)
		return
	}

	if req.Async {
		s.handleCheckAsync(w, r, req.Tag, req.Source)
		return
	}

	var reports []grader.Report
	if req.Tag != "" {
		reports = []grader.Report{s.grader.Check(r.Context(), req.Tag, req.Source)}
	} else {
		reports = s.grader.CheckSubmission(r.Context(), req.Source)
	}

	s.recordAttempts(r.Context(), req.Source, reports)

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
	})
}

// handleCheckAsync enqueues the check instead of grading inline. The caller
// collects the report from the report queue by job ID.
func (s *Server) handleCheckAsync(w http.ResponseWriter, r *http.Request, tag, source string) {
	if s.producer == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "check queue is not enabled", nil)
		return
	}

	job := queue.CreateCheckJob(tag, source, 0)
	if err := s.producer.PublishCheckJob(r.Context(), job); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to enqueue check", err)
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
	})
}

// recordAttempts persists one attempt per report when a store is configured.
func (s *Server) recordAttempts(ctx context.Context, source string, reports []grader.Report) {
	if s.attempts == nil {
		return
	}

	for _, rep := range reports {
		a := domain.NewAttempt(rep.Tag, source)
		a.Question = rep.Question
		a.Status = string(rep.Status)
		a.Stage = rep.Stage
		a.Detail = rep.Detail
		a.Cases = rep.Cases
		a.Passed = rep.Passed

		if err := s.attempts.Save(ctx, a); err != nil {
			slog.Warn("failed to record attempt", "tag", rep.Tag, "error", err)
		}
	}
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "attempt storage is not enabled", nil)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.jsonError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	var (
		attempts []*domain.Attempt
		err      error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		attempts, err = s.attempts.ListByTag(r.Context(), tag, limit)
	} else {
		attempts, err = s.attempts.ListRecent(r.Context(), limit)
	}
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to list attempts", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"attempts": attemptViews(attempts),
	})
}

func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "attempt storage is not enabled", nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid attempt id", err)
		return
	}

	a, err := s.attempts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAttemptNotFound) {
			s.jsonError(w, http.StatusNotFound, "attempt not found", nil)
			return
		}
		s.jsonError(w, http.StatusInternalServerError, "failed to get attempt", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, attemptView(a))
}

func attemptView(a *domain.Attempt) map[string]interface{} {
	return map[string]interface{}{
		"id":         a.ID.String(),
		"tag":        a.Tag,
		"question":   a.Question,
		"status":     a.Status,
		"stage":      a.Stage,
		"detail":     a.Detail,
		"cases":      a.Cases,
		"passed":     a.Passed,
		"created_at": a.CreatedAt.Format(time.RFC3339),
	}
}

func attemptViews(attempts []*domain.Attempt) []map[string]interface{} {
	views := make([]map[string]interface{}, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, attemptView(a))
	}
	return views
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}
