package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bestbox-ai/orchestrator/pkg/auth"
	"github.com/bestbox-ai/orchestrator/pkg/config"
	"github.com/bestbox-ai/orchestrator/pkg/gpu"
	"github.com/bestbox-ai/orchestrator/pkg/observability"
	"github.com/bestbox-ai/orchestrator/pkg/session"
)

// Server is the runtime's HTTP surface (spec.md §6), wrapping an
// already-wired session.Service (C9, fronting the graph runtime and
// storage), a gpu.Scheduler (C8) for the status endpoint, and the optional
// observability and auth layers. Composition (building sessions, gpu,
// observability from config.Config) is cmd/bestboxd's job; Server only
// takes the finished dependencies.
type Server struct {
	cfg      config.ServerConfig
	sessions *session.Service
	gpu      *gpu.Scheduler
	obs      *observability.Manager
	authV    *auth.JWTValidator

	httpServer *http.Server
}

// New builds a Server. authValidator is nil when authentication is disabled
// (config.AuthConfig.Enabled == false); obs is nil when observability is
// disabled.
func New(cfg config.ServerConfig, sessions *session.Service, scheduler *gpu.Scheduler, obs *observability.Manager, authValidator *auth.JWTValidator) *Server {
	cfg.SetDefaults()
	return &Server{cfg: cfg, sessions: sessions, gpu: scheduler, obs: obs, authV: authValidator}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.obs != nil {
		r.Use(metricsMiddleware(s.obs.Metrics()))
	}

	r.Route("/v1", func(v1 chi.Router) {
		if s.authV != nil {
			v1.Use(s.authV.HTTPMiddleware)
		}
		v1.Post("/chat/completions", s.handleChatCompletions)
		v1.Post("/threads/{thread_id}/approve", s.handleApprove)
		v1.Get("/threads/{thread_id}", s.handleGetThread)
		v1.Post("/threads/{thread_id}/turns/{turn_id}/rating", s.handleRating)
		v1.Get("/gpu/status", s.handleGPUStatus)
	})

	if s.obs != nil && s.obs.MetricsEnabled() {
		r.Handle(s.obs.MetricsEndpoint(), s.obs.MetricsHandler())
	}

	return r
}

// Start binds the HTTP listener and returns once listening begins; it does
// not block (mirrors the teacher's Start/Wait split in pkg/server).
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router(),
		ReadTimeout:  s.cfg.RequestTimeout,
		WriteTimeout: 0, // chat/completions SSE responses can run far longer than a fixed write deadline
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	case <-time.After(200 * time.Millisecond):
		slog.Info("server started", "addr", s.cfg.Addr, "auth_enabled", s.authV != nil, "observability_enabled", s.obs != nil)
		return nil
	}
}

// Stop gracefully drains in-flight requests (including streaming SSE
// connections) within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("server stopping")
	return s.httpServer.Shutdown(ctx)
}
