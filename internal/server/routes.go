package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimd "github.com/go-chi/chi/v5/middleware"
)

// healthReport is the /health payload.
type healthReport struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Handlers  []string          `json:"handlers"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimd.RequestID)
	r.Use(chimd.RealIP)
	r.Use(chimd.Recoverer)
	r.Use(s.metrics.Collect)
	r.Use(chimd.Heartbeat("/ping"))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.cfg.HTTPRateLimitRPS, s.cfg.HTTPRateLimitBurst))
		s.httpAPI.Routes(r)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	timeout := s.cfg.HealthCheckTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	report := healthReport{
		Status:    "healthy",
		Checks:    make(map[string]string, len(s.checks)),
		Handlers:  s.reg.Names(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			report.Status = "unhealthy"
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}

	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, report, status)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, map[string]string{"status": "starting"}, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
