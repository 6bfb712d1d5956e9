// Package server wires the orchestrator components into a gRPC process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/orbicity/opsbot/internal/platform/timeouts"
	"github.com/orbicity/opsbot/internal/services/orchestrator/api/grpc/orchestrator"
	"github.com/orbicity/opsbot/internal/services/orchestrator/conversation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/generation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/handler"
	"github.com/orbicity/opsbot/internal/services/orchestrator/lifecycle"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
	opssqlite "github.com/orbicity/opsbot/internal/services/orchestrator/storage/sqlite"
)

// Config holds everything the server needs besides its listen address.
type Config struct {
	DBPath            string        `env:"OPSBOT_DB_PATH"`
	ModuleSeed        string        `env:"OPSBOT_MODULE_SEED"`
	QueueSize         int           `env:"OPSBOT_EXECUTION_QUEUE" envDefault:"64"`
	Workers           int           `env:"OPSBOT_EXECUTION_WORKERS" envDefault:"4"`
	HandlerTimeout    time.Duration `env:"OPSBOT_HANDLER_TIMEOUT" envDefault:"20s"`
	GenerationTimeout time.Duration `env:"OPSBOT_GENERATION_TIMEOUT" envDefault:"30s"`

	Generation generation.Config
	Gateways   handler.GatewayConfig
}

// Server hosts the orchestrator service.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *opssqlite.Store
	engine     *lifecycle.Engine
	dispatcher *lifecycle.Dispatcher
	logger     zerolog.Logger
	closeOnce  sync.Once
}

// New creates a configured server listening on addr.
func New(ctx context.Context, addr string, cfg Config, logger zerolog.Logger) (*Server, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "opsbot.db")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	fail := func(err error) (*Server, error) {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	configs, err := seedConfigs(ctx, store, cfg.ModuleSeed, logger)
	if err != nil {
		return fail(err)
	}

	generator, err := generation.New(ctx, cfg.Generation)
	if err != nil {
		return fail(fmt.Errorf("build generator: %w", err))
	}

	engine := lifecycle.NewEngine(store, configs, handler.DefaultRegistry(cfg.Gateways, logger),
		lifecycle.WithHandlerTimeout(cfg.HandlerTimeout),
		lifecycle.WithLogger(logger.With().Str("cmp", "lifecycle").Logger()),
	)
	dispatcher := lifecycle.NewDispatcher(engine,
		lifecycle.WithQueueSize(cfg.QueueSize),
		lifecycle.WithWorkers(cfg.Workers),
		lifecycle.WithDispatcherLogger(logger.With().Str("cmp", "dispatcher").Logger()),
	)
	engine.AttachScheduler(dispatcher)

	manager := conversation.NewManager(store, configs, generator, engine,
		conversation.WithGenerationTimeout(cfg.GenerationTimeout),
		conversation.WithLogger(logger.With().Str("cmp", "conversation").Logger()),
	)
	service := orchestrator.NewService(manager, engine, configs, logger.With().Str("cmp", "grpc").Logger())

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	orchestrator.RegisterOrchestratorServiceServer(grpcServer, service)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(orchestrator.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until ctx ends.
func Run(ctx context.Context, addr string, cfg Config, logger zerolog.Logger) error {
	server, err := New(ctx, addr, cfg, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the execution dispatcher and the gRPC server and blocks until
// ctx ends. In-flight executions are drained before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()
	dispatchDone := make(chan error, 1)
	go func() {
		dispatchDone <- s.dispatcher.Run(dispatchCtx)
	}()

	// Resume runs beside the gRPC server and stops with the dispatcher.
	resumeDone := make(chan struct{})
	go func() {
		defer close(resumeDone)
		if _, err := s.engine.ResumeApproved(dispatchCtx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, lifecycle.ErrDispatcherStopped) {
			s.logger.Warn().Err(err).Msg("resume approved actions")
		}
	}()

	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("opsbot server listening")
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	var err error
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.gracefulStop()
		err = <-serveErr
	case err = <-serveErr:
	}

	stopDispatch()
	<-resumeDone
	if dispatchErr := <-dispatchDone; dispatchErr != nil {
		s.logger.Warn().Err(dispatchErr).Msg("execution dispatcher stopped")
	}

	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

// gracefulStop waits for in-flight RPCs up to the shutdown timeout.
func (s *Server) gracefulStop() {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeouts.Shutdown):
		s.logger.Warn().Msg("graceful stop timed out, forcing")
		s.grpcServer.Stop()
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn().Err(err).Msg("close listener")
			}
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.logger.Warn().Err(err).Msg("close store")
			}
		}
	})
}

func openStore(path string) (*opssqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := opssqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open opsbot sqlite store: %w", err)
	}
	return store, nil
}

// seedConfigs inserts missing module configs from the seed file, or the
// built-in defaults, and warms the config cache.
func seedConfigs(ctx context.Context, store *opssqlite.Store, seedPath string, logger zerolog.Logger) (*moduleconfig.Store, error) {
	seed := moduleconfig.DefaultConfigs()
	if path := strings.TrimSpace(seedPath); path != "" {
		loaded, err := moduleconfig.LoadSeedFile(path)
		if err != nil {
			return nil, fmt.Errorf("load module seed: %w", err)
		}
		seed = loaded
	}
	inserted, err := moduleconfig.Seed(ctx, store, seed, time.Now())
	if err != nil {
		return nil, fmt.Errorf("seed module configs: %w", err)
	}
	if inserted > 0 {
		logger.Info().Int("count", inserted).Msg("seeded module configs")
	}

	configs := moduleconfig.NewStore(store, moduleconfig.WithLogger(logger.With().Str("cmp", "moduleconfig").Logger()))
	if err := configs.ReloadAll(ctx); err != nil {
		return nil, fmt.Errorf("load module configs: %w", err)
	}
	return configs, nil
}
