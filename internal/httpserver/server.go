// Package httpserver serves the optional /metrics and /healthz
// endpoints on metrics_listen (§4.9, §6), grounded on the teacher
// pack's pprof/chi server pattern (autobrr-qui's internal/api/pprof.go).
package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the optional metrics/health HTTP listener.
type Server struct {
	addr   string
	logger *zap.Logger
	srv    *http.Server
}

// New builds a Server bound to addr, exposing reg's collected metrics.
// addr == "" means disabled; callers must check that before calling
// Start.
func New(addr string, reg *prometheus.Registry, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		addr:   addr,
		logger: logger,
		srv:    &http.Server{Addr: addr, Handler: r},
	}
}

// Start runs the listener in the background, logging a fatal-adjacent
// error (but not exiting the process — only cmd/pgqd decides to exit)
// if the listener cannot bind.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
