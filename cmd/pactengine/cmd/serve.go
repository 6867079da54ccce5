package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pact-foundation/pactengine/internal/core/api"
	"github.com/pact-foundation/pactengine/internal/core/auth"
	"github.com/pact-foundation/pactengine/internal/core/metrics"
	"github.com/pact-foundation/pactengine/internal/core/server"
	"github.com/pact-foundation/pactengine/internal/plan"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the contract engine gRPC service",
	Long: `Serves Verify and Generate over gRPC together with a Prometheus metrics
endpoint. Plans in the plans directory are loaded at startup and reloaded
when their files change. With a contract store configured, old verification
results are pruned on the configured schedule.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "gRPC listen host")
	serveCmd.Flags().Int("port", 0, "gRPC listen port")
	serveCmd.Flags().String("plans-dir", "", "directory of plan documents")
	serveCmd.Flags().String("metrics-addr", "", "metrics listen address (empty disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("plans-dir") {
		cfg.Server.PlansDir, _ = flags.GetString("plans-dir")
	}
	if flags.Changed("metrics-addr") {
		cfg.Server.MetricsAddr, _ = flags.GetString("metrics-addr")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(nil)
	opts := []api.Option{api.WithLogger(logger), api.WithMetrics(collector)}
	deps := server.Deps{Metrics: collector.Handler(), Logger: logger}

	if cfg.Store.URL != "" {
		store, closeStore, err := openStore(ctx, cfg, logger, collector)
		if err != nil {
			return err
		}
		defer closeStore()
		opts = append(opts, api.WithStore(store))
		deps.Pruner = store
		if cfg.Server.AuthSecret != "" {
			authn := auth.NewAuthenticator(store, logger, []byte(cfg.Server.AuthSecret))
			deps.Interceptors = append(deps.Interceptors, authn.UnaryInterceptor())
			logger.Info("API key authentication enabled")
		}
	} else {
		logger.Info("no contract store configured, verification results are not recorded")
	}

	if cfg.Server.PlansDir != "" {
		catalog := plan.NewCatalog(cfg.Server.PlansDir, logger)
		if err := catalog.Load(); err != nil {
			if _, statErr := os.Stat(cfg.Server.PlansDir); statErr != nil {
				return err
			}
			// Broken plan files are logged by Load and retried on change
		}
		collector.SetPlansLoaded(len(catalog.Names()))
		opts = append(opts, api.WithCatalog(catalog))
		deps.Catalog = catalog
		deps.OnReload = func(string, error) {
			collector.SetPlansLoaded(len(catalog.Names()))
		}
	}

	deps.Service = api.NewGRPCService(api.NewContractService(cfg.Matching.Engine(), opts...))
	srv, err := server.New(cfg, deps)
	if err != nil {
		return err
	}

	logger.Info("starting contract engine", "version", Version, "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
