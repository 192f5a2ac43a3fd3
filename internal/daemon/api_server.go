package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"manifold/internal/api"
	"manifold/internal/config"
	"manifold/internal/ingest"
	"manifold/internal/logging"
	"manifold/internal/services"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(srv.token, srv.handleStatus))
	mux.HandleFunc("/api/workflows", authMiddleware(srv.token, srv.handleWorkflows))
	mux.HandleFunc("/api/workflows/", authMiddleware(srv.token, srv.handleWorkflow))
	mux.HandleFunc("/api/stats", authMiddleware(srv.token, srv.handleStats))
	mux.HandleFunc("/api/audit", authMiddleware(srv.token, srv.handleAudit))
	mux.HandleFunc("/api/feed", authMiddleware(srv.token, srv.handleFeed))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		StartedAt:    api.FormatTime(status.StartedAt),
		ArchivePath:  status.ArchivePath,
		LockFilePath: status.LockFilePath,
		SocketPath:   status.SocketPath,
		APIBind:      status.APIBind,
		Stats:        api.FromStatistics(status.Stats),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	includeArchived := query.Get("archived") == "1" || strings.EqualFold(query.Get("archived"), "true")
	limit, _ := strconv.Atoi(query.Get("limit"))

	statuses, err := s.daemon.Workflows(r.Context(), includeArchived, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowListResponse{Workflows: api.FromWorkflowStatuses(statuses)})
}

func (s *apiServer) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entityID := strings.TrimPrefix(r.URL.Path, "/api/workflows/")
	if entityID == "" || strings.Contains(entityID, "/") {
		s.writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	st, contextJSON, err := s.daemon.Describe(r.Context(), entityID)
	if err != nil {
		s.writeServiceError(w, err, "workflow not found")
		return
	}
	dto := api.FromWorkflowStatus(st)
	api.AttachContext(&dto, contextJSON)
	s.writeJSON(w, http.StatusOK, api.WorkflowResponse{Workflow: dto})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats := s.daemon.Statistics(r.Context())
	s.writeJSON(w, http.StatusOK, api.FromStatistics(stats))
}

func (s *apiServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	entries := s.daemon.AuditLog(limit)
	s.writeJSON(w, http.StatusOK, api.AuditResponse{Entries: api.FromAuditEntries(entries)})
}

func (s *apiServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.FeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid feed payload")
		return
	}
	rec := ingest.Record{
		EntityID: req.EntityID,
		Readings: req.Readings,
		Source:   "http-api",
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid timestamp, want RFC3339")
			return
		}
		rec.Timestamp = ts
	}
	st, err := s.daemon.Feed(r.Context(), rec)
	if err != nil {
		s.writeServiceError(w, err, "feed rejected")
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.WorkflowResponse{Workflow: api.FromWorkflowStatus(st)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service marker errors onto HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, fallback)
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConfiguration):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
