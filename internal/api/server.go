// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the operator HTTP surface of the transcoding daemon:
// session administration, foreground and resource overrides, history and
// the scheduler dump.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/mediatranscoding/internal/api/middleware"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/controller"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
	"github.com/ManuGH/mediatranscoding/internal/history"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/policy/resource"
)

const shutdownTimeout = 10 * time.Second

// Sessions is the scheduler surface used by the API.
type Sessions interface {
	SubmitContext(ctx context.Context, client model.ClientID, session model.SessionID, uid model.UID, req model.Request, cb ports.CallbackRef) bool
	CancelContext(ctx context.Context, client model.ClientID, session model.SessionID) bool
	GetSession(client model.ClientID, session model.SessionID) (model.Request, bool)
	Snapshot() controller.Snapshot
	DumpAllSessions(w io.Writer) error
}

// Foreground overrides the application priority oracle.
type Foreground interface {
	SetForeground(uids ...model.UID)
	GetTopUids() model.UIDSet
}

// Resources overrides the resource oracle.
type Resources interface {
	ForceLost()
	ClearForced()
	Status() (lost, forced bool, last resource.Sample)
}

// History lists terminal session outcomes.
type History interface {
	List(ctx context.Context, f history.Filter) ([]history.Record, error)
}

// Deps are the collaborators of the server. Foreground, Resources and
// History are optional; their routes answer 503 when unset.
type Deps struct {
	Sessions   Sessions
	Foreground Foreground
	Resources  Resources
	History    History
}

// Config configures the HTTP server.
type Config struct {
	ListenAddr string
	// RateLimit is the per-IP request budget per minute on mutating routes.
	RateLimit      int
	TracingService string
	Version        string
	// EventLogSize bounds the per-client event log.
	EventLogSize int
	// EventLogIdle drops client event logs unused for this long.
	EventLogIdle time.Duration
}

// Server is the operator HTTP server.
type Server struct {
	cfg    Config
	deps   Deps
	events *EventLogs
	logger zerolog.Logger
	router chi.Router
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		events: NewEventLogs(cfg.EventLogSize, cfg.EventLogIdle),
		logger: log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Events returns the per-client event logs.
func (s *Server) Events() *EventLogs { return s.events }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/debug/sessions", s.handleDumpSessions)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sessions/{client}/{session}", s.handleGetSession)
		r.Get("/clients/{client}/events", s.handleClientEvents)
		r.Get("/history", s.handleHistory)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: s.cfg.RateLimit,
				WindowSize:   time.Minute,
			}))
			r.Post("/sessions", s.handleSubmit)
			r.Delete("/sessions/{client}/{session}", s.handleCancel)
			r.Put("/uids/foreground", s.handleSetForeground)
			r.Post("/resources/{state}", s.handleResources)
		})
	})
	return r
}

// Run serves on cfg.ListenAddr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("api listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
