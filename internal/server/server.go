// Package server provides the HTTP REST API for the resume collector.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/collector"
	"github.com/recruit-ops/resume-collector/internal/db"
	"github.com/recruit-ops/resume-collector/internal/logging"
	"github.com/recruit-ops/resume-collector/internal/review"
	"github.com/recruit-ops/resume-collector/internal/server/ratelimit"
)

// Store is the resume and posting persistence the API uses.
type Store interface {
	ListResumes(ctx context.Context, f db.ResumeFilter) ([]db.Resume, error)
	GetResume(ctx context.Context, id uuid.UUID) (*db.Resume, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status db.Status) (*db.Resume, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (*db.Resume, error)
	Restore(ctx context.Context, id uuid.UUID) (*db.Resume, error)
	DeletePermanent(ctx context.Context, id uuid.UUID) (*db.Resume, error)
	ListJobPostings(ctx context.Context) ([]db.JobPosting, error)
}

// Collector runs and reports collection runs.
type Collector interface {
	Run(ctx context.Context) (*collector.Result, error)
	LastResult(ctx context.Context) (*collector.Result, error)
}

// Reviewer scores resumes and serves posting Markdown.
type Reviewer interface {
	Review(ctx context.Context, id uuid.UUID) (*review.Outcome, error)
	PostingMarkdown(ctx context.Context, postingID string) (string, error)
}

// Files resolves stored artifacts.
type Files interface {
	Path(kind artifacts.Kind, filename string) (string, error)
	Read(kind artifacts.Kind, filename string) ([]byte, error)
}

// Deps are the services behind the API.
type Deps struct {
	Store     Store
	Collector Collector
	Reviewer  Reviewer
	Files     Files
	Logs      *logging.Ring
	Limiter   *ratelimit.Limiter // nil disables rate limiting
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a new server instance listening on port.
func New(port int, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Logs == nil {
		deps.Logs = logging.NewRing(0)
	}
	s := &Server{deps: deps, logger: deps.Logger, now: time.Now}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Collection runs hold the response open; handleCollect lifts the
		// write deadline for its own request.
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/resumes", s.handleListResumes)
	mux.HandleFunc("POST /api/resumes/collect", s.handleCollect)
	mux.HandleFunc("GET /api/resumes/collect/last", s.handleLastCollect)
	mux.HandleFunc("GET /api/resumes/pdf/{filename}", s.handlePDF)
	mux.HandleFunc("GET /api/resumes/markdown/{filename}", s.handleMarkdownDownload)
	mux.HandleFunc("GET /api/resumes/markdown/{filename}/view", s.handleMarkdownView)
	mux.HandleFunc("GET /api/resumes/{id}", s.handleGetResume)
	mux.HandleFunc("PATCH /api/resumes/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("DELETE /api/resumes/{id}", s.handleSoftDelete)
	mux.HandleFunc("POST /api/resumes/{id}/restore", s.handleRestore)
	mux.HandleFunc("DELETE /api/resumes/{id}/permanent", s.handleDeletePermanent)
	mux.HandleFunc("POST /api/resumes/{id}/review", s.handleReview)

	mux.HandleFunc("GET /api/job-postings", s.handleListJobPostings)
	mux.HandleFunc("GET /api/job-postings/{id}/markdown", s.handlePostingMarkdown)

	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/logs/stream", s.handleLogStream)
	mux.HandleFunc("DELETE /api/logs", s.handleClearLogs)

	mux.HandleFunc("/", s.handleNotFound)

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if s.deps.Limiter != nil {
		s.deps.Limiter.Stop()
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.deps.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.deps.Limiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/api/logs" || r.URL.Path == "/api/logs/stream" {
			return
		}
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"success":   false,
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	s.logger.Warn("rate limit exceeded",
		zap.Int("limit", info.Limit), zap.Time("reset", info.ResetTime))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", zap.Error(err))
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// dataResponse writes {"success": true, "data": data}.
func (s *Server) dataResponse(w http.ResponseWriter, data any) {
	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: data})
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, envelope{Success: false, Error: message})
}

// fail maps err to a status and writes it. Server errors are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	s.errorResponse(w, http.StatusNotFound, "Route not found")
}
