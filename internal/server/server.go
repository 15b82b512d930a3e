// Package server wires the fetcher together: logging, COMMS, database, registry, dispatcher,
// the HTTP and COMMS adapters, and shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/resource-fetcher/internal/config"
	"github.com/morezero/resource-fetcher/pkg/adapter"
	"github.com/morezero/resource-fetcher/pkg/bootstrap"
	"github.com/morezero/resource-fetcher/pkg/commsutil"
	"github.com/morezero/resource-fetcher/pkg/db"
	"github.com/morezero/resource-fetcher/pkg/dispatcher"
	"github.com/morezero/resource-fetcher/pkg/events"
	"github.com/morezero/resource-fetcher/pkg/pgstore"
	"github.com/morezero/resource-fetcher/pkg/registry"
)

const logPrefix = "server:server"

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Deps are the connections the server runs on. Nil fields disable what depends on them.
type Deps struct {
	Conn *comms.Conn
	Pool *pgxpool.Pool
	// Store backs the document handler; it defaults to a repository over Pool.
	Store     pgstore.Store
	Bootstrap *bootstrap.ResolvedBootstrap
}

// healthCheck reports an unhealthy dependency by returning an error.
type healthCheck func(ctx context.Context) error

// Server is the resource-fetcher orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	reg        *registry.Registry
	disp       *dispatcher.Dispatcher
	httpAPI    *adapter.HTTPAdapter
	commsAPI   *adapter.CommsAdapter
	metrics    *httpMetrics
	checks     map[string]healthCheck
	handler    http.Handler
	httpServer *http.Server
	ready      atomic.Bool
}

// New builds a Server from cfg and deps without starting any listener.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	store := deps.Store
	if store == nil && deps.Pool != nil {
		store = db.NewRepository(deps.Pool)
	}

	reg, err := buildRegistry(cfg, deps.Conn, store, deps.Bootstrap)
	if err != nil {
		return nil, err
	}

	var dopts []dispatcher.Option
	if deps.Conn != nil {
		opts := &events.CommsPublisherOpts{GlobalChangeSubject: cfg.ChangeEventSubject}
		if deps.Bootstrap != nil {
			if opts.GlobalChangeSubject == "" {
				opts.GlobalChangeSubject = deps.Bootstrap.GlobalChangeSubject()
			}
			opts.ChangeSubjectPattern = deps.Bootstrap.ChangeSubjectPattern()
		}
		dopts = append(dopts, dispatcher.WithPublisher(events.NewCommsPublisher(deps.Conn, opts)))
	}
	disp := dispatcher.NewDispatcher(reg, dopts...)

	s := &Server{
		cfg:     cfg,
		nc:      deps.Conn,
		reg:     reg,
		disp:    disp,
		httpAPI: adapter.NewHTTPAdapter(disp, adapter.HTTPOptions{Timeout: cfg.RequestTimeout, MaxBodyBytes: cfg.HTTPMaxBodyBytes}),
		metrics: newHTTPMetrics(),
		checks:  map[string]healthCheck{},
	}

	if deps.Conn != nil {
		s.commsAPI = adapter.NewCommsAdapter(deps.Conn, disp, adapter.CommsOptions{
			Subject: cfg.FetcherSubject,
			Timeout: cfg.RequestTimeout,
		})
		s.checks["comms"] = func(context.Context) error {
			if !deps.Conn.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}
	if deps.Pool != nil {
		s.checks["database"] = deps.Pool.Ping
	}

	s.handler = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the handler table.
func (s *Server) Registry() *registry.Registry {
	return s.reg
}

// Start subscribes the COMMS adapter and starts listening on the configured address.
func (s *Server) Start() error {
	if s.commsAPI != nil {
		if err := s.commsAPI.Start(); err != nil {
			return err
		}
	}

	addr := s.cfg.ListenAddr()
	s.httpServer = &http.Server{Addr: addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	s.ready.Store(true)
	return nil
}

// Shutdown stops accepting work and drains the COMMS subscription.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s - http shutdown: %w", logPrefix, err))
		}
	}
	if s.commsAPI != nil {
		if err := s.commsAPI.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s - comms stop: %w", logPrefix, err))
		}
	}
	return errors.Join(errs...)
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	logger, logFile := newLogger(cfg.LogLevel, cfg.LogFile)
	defer logFile.Close()
	slog.SetDefault(logger)

	slog.Info(fmt.Sprintf("%s - Starting resource-fetcher", logPrefix))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step 1: Load bootstrap config
	bootstrapCfg, err := bootstrap.LoadBootstrapConfig(cfg.BootstrapFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load bootstrap config: %w", logPrefix, err)
	}
	deps := Deps{Bootstrap: bootstrap.CreateResolvedBootstrap(bootstrapCfg)}

	// Step 2: Connect to COMMS
	if cfg.COMMSEnabled {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		defer nc.Drain()
		deps.Conn = nc
		slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, cfg.COMMSURL))
	}

	// Step 3: Connect to database
	if cfg.StoreEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		defer pool.Close()
		deps.Pool = pool

		if cfg.RunMigrations {
			migrations, err := db.LoadMigrations(cfg.MigrationPath)
			if err != nil {
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
	}

	// Step 4: Registry, dispatcher and adapters
	s, err := New(cfg, deps)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s - resource-fetcher is ready with %d handlers", logPrefix, s.reg.Len()))

	<-ctx.Done()
	slog.Info(fmt.Sprintf("%s - Shutdown signal received", logPrefix))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.Error(fmt.Sprintf("%s - %v", logPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}
