package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	reporter *Reporter
	mux      *http.ServeMux
	server   *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// Option customizes a Server.
type Option func(*Server)

// WithRoute mounts an extra handler next to the health routes.
func WithRoute(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.mux.Handle(pattern, h)
	}
}

// NewServer creates a health server listening on addr (host:port, ":0" picks
// a free port).
func NewServer(reporter *Reporter, addr string, opts ...Option) *Server {
	s := &Server{reporter: reporter, mux: http.NewServeMux()}
	s.server = &http.Server{Addr: addr, Handler: s.mux}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /health/ready", s.handleReady)
	s.mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler exposes the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen binds the address so bind errors surface before serving.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Start serves until Stop. It listens first if Listen was not called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	return s.server.Serve(ln)
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth is the liveness view: only critical is unavailable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.reporter.Report()
	code := http.StatusOK
	if report.Status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  report.Status,
		"reasons": report.Reasons,
	})
}

// handleReady reports whether calls would currently go out undegraded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	report := s.reporter.Report()
	code := http.StatusOK
	if report.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ready": code == http.StatusOK, "status": report.Status})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reporter.Report())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
