package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"google.golang.org/grpc"

	"github.com/pact-foundation/pactengine/internal/core/api"
	"github.com/pact-foundation/pactengine/internal/core/config"
	"github.com/pact-foundation/pactengine/internal/plan"
)

// Deps are the components a Server runs. Only Service is required.
type Deps struct {
	Service api.ContractEngineServer
	// Catalog is watched for changes when set.
	Catalog *plan.Catalog
	// Metrics is served on the metrics address when set.
	Metrics http.Handler
	// Pruner is run on the prune schedule when set.
	Pruner Pruner
	// OnReload runs after each plan reload.
	OnReload func(name string, err error)
	// Interceptors are added to the gRPC chain, e.g. authentication.
	Interceptors []grpc.UnaryServerInterceptor
	Logger       *slog.Logger
}

// Server runs the gRPC service and its supporting loops together.
type Server struct {
	grpc      *GRPCServer
	metrics   *MetricsServer
	watcher   *PlanWatcher
	scheduler *PruneScheduler
	logger    *slog.Logger
}

// New assembles a server from cfg and deps.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g, err := NewGRPCServer(cfg.Server, deps.Service, logger, deps.Interceptors...)
	if err != nil {
		return nil, err
	}
	s := &Server{grpc: g, logger: logger}

	if deps.Metrics != nil && cfg.Server.MetricsAddr != "" {
		s.metrics = NewMetricsServer(cfg.Server.MetricsAddr, deps.Metrics, logger)
	}
	if deps.Catalog != nil {
		if s.watcher, err = NewPlanWatcher(deps.Catalog, logger); err != nil {
			return nil, err
		}
		s.watcher.OnReload = deps.OnReload
	}
	if deps.Pruner != nil {
		s.scheduler = NewPruneScheduler(deps.Pruner, cfg.Store.PruneSchedule, cfg.Store.Retention, logger)
	}
	return s, nil
}

// GRPC returns the gRPC server.
func (s *Server) GRPC() *GRPCServer { return s.grpc }

// Run serves until ctx is cancelled or a component fails, then shuts every
// component down. The first failure is returned.
func (s *Server) Run(ctx context.Context) error {
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithFirstError()

	p.Go(func(context.Context) error {
		return s.grpc.Start(ctx)
	})
	if s.metrics != nil {
		p.Go(func(context.Context) error {
			return s.metrics.Start(ctx)
		})
	}
	if s.watcher != nil {
		p.Go(func(ctx context.Context) error {
			return s.watcher.Watch(ctx)
		})
	}
	if s.scheduler != nil {
		p.Go(func(ctx context.Context) error {
			if err := s.scheduler.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		})
	}

	// Servers block in Serve and only return once shut down
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return s.shutdown()
	})

	err := p.Wait()
	s.logger.Info("server stopped")
	return err
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.grpc.Shutdown(ctx)
	if s.metrics != nil {
		err = multierr.Append(err, s.metrics.Shutdown(ctx))
	}
	if err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
