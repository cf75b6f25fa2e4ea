// Package httpapi is the HTTP surface of the agents. Each agent process
// runs one Server: a ServeMux behind a shared middleware chain (panic
// recovery, request IDs, request logging, a body cap, a per-request
// deadline) plus the standing routes every agent answers, GET / for
// liveness and GET /metrics for counters.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sidequest/faults"
	"sidequest/metrics"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

// Options configures one agent's server.
type Options struct {
	Agent          string // name reported by GET /
	Addr           string
	Logger         *zap.Logger
	Metrics        *metrics.Registry // nil disables counters
	RequestTimeout time.Duration     // zero means no per-request deadline
}

// Server hosts one agent's routes.
type Server struct {
	agent   string
	logger  *zap.Logger
	metrics *metrics.Registry
	timeout time.Duration
	mux     *http.ServeMux
	handler http.Handler
	srv     *http.Server
}

// NewServer builds a server with the standing routes registered. Agent
// routes are added with Handle before Start.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		agent:   opts.Agent,
		logger:  logger.Named("http").With(zap.String("agent", opts.Agent)),
		metrics: opts.Metrics,
		timeout: opts.RequestTimeout,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = s.mux
	handler = s.withDeadline(handler)
	handler = s.limitBody(handler)
	handler = s.trace(handler)
	handler = s.recovered(handler)
	s.handler = handler

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handle registers an agent route. Patterns use the method-qualified
// ServeMux form, like "POST /award_xp".
func (s *Server) Handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

// Handler returns the middleware-wrapped mux.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Agent returns the agent name this server reports.
func (s *Server) Agent() string {
	return s.agent
}

// Start serves until Shutdown. A closed-server result is not an error.
func (s *Server) Start() error {
	s.logger.Info("listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.agent, err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"agent":  s.agent,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// recovered turns handler panics into JSON 500s.
func (s *Server) recovered(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"))
				writeJSON(w, http.StatusInternalServerError,
					map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// trace assigns a request ID, counts the request, and logs it on the
// way out. Inbound X-Request-Id values are kept so callers can thread
// their own IDs through.
func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		s.metrics.IncRequests()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withDeadline(next http.Handler) http.Handler {
	if s.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusWriter records the status code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// An encode failure here means the client is gone; nothing to do.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a pipeline error onto a JSON error body and the
// status its code implies.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{
		"error": err.Error(),
		"code":  string(faults.CodeOf(err)),
	})
}

// statusFor picks the HTTP status for an error. Caller mistakes map to
// 4xx, upstream and store trouble to 502, everything else to 500.
func statusFor(err error) int {
	switch faults.CodeOf(err) {
	case faults.CodeInvalidInput, faults.CodeMalformedRecord:
		return http.StatusBadRequest
	case faults.CodeNotFound:
		return http.StatusNotFound
	case faults.CodeUnauthorized:
		return http.StatusUnauthorized
	case faults.CodeRateLimited:
		return http.StatusTooManyRequests
	}
	if faults.CategoryOf(err) == faults.CategoryTransient {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeJSON reads one JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return faults.New(faults.CodeInvalidInput,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return faults.New(faults.CodeInvalidInput, "decode request body: "+err.Error())
	}
	return nil
}

// queryInt reads an integer query parameter, falling back on absence
// or garbage.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}
