package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixml/jembed"
	"github.com/helixml/jembed/infrastructure/api"
	apimiddleware "github.com/helixml/jembed/infrastructure/api/middleware"
	"github.com/helixml/jembed/internal/config"
	"github.com/helixml/jembed/internal/log"
	"github.com/helixml/jembed/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	idlePoll        = 5 * time.Second
)

// errScaledown ends the serve group once the idle window has elapsed.
var errScaledown = errors.New("idle window elapsed")

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

The model is loaded before the listener opens; if loading fails the command
exits without accepting traffic.

DEVICE defaults to cuda, which needs a binary built with -tags ORT and the
ONNX Runtime CUDA libraries. The default build runs the pure Go backend only:
start it with DEVICE=auto or DEVICE=cpu.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  EMBED_API_TOKEN              Bearer token required by POST /embed (default: none, open)
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.jembed)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)

  BACKEND                      Embedding backend: hugot, openai (default: hugot)
  MODEL_ID                     Model name (default: sonoisa/sentence-bert-base-ja-mean-tokens-v2)
  MODEL_DIR                    Model cache (default: {data_dir}/models)
  MODEL_DOWNLOAD               Download the model if missing (default: true)
  MODEL_CONVERT                Convert a model without ONNX export using uv (default: true)
  PRE_TOKENIZER                Text splitting: auto, mecab, none (default: auto)
  HF_TOKEN                     Hugging Face token for downloads
  DEVICE                       Device policy: cuda, auto, cpu (default: cuda, needs -tags ORT)
  DEVICE_ID                    CUDA device index (default: 0)

  EMBEDDING_ENDPOINT_*         Remote embedding service (BACKEND=openai)
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier (e.g., text-embedding-3-small)
    API_KEY                    API key for authentication
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 0)

  SCALEDOWN_WINDOW             Idle seconds before shutting down, 0 disables (default: 0)
  CORS_ALLOWED_ORIGINS         Comma-separated browser origins
  MCP_ENABLED                  Mount the MCP endpoint at /mcp (default: false)
  METRICS_ENABLED              Serve Prometheus metrics at /metrics (default: false)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(parent context.Context, envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// Flags take precedence over env vars.
	cfg = applyServeOverrides(cfg, host, port)

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.NewLogger(cfg)
	slogger := logger.Slog()

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting jembed", attrs...)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := jembed.NewWithContext(ctx,
		jembed.WithAppConfig(cfg),
		jembed.WithLogger(slogger),
	)
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slogger.Error("failed to close embedding service", slog.Any("error", err))
		}
	}()

	opts := []api.APIServerOption{
		api.WithAPIToken(cfg.APIToken()),
		api.WithCORSOrigins(cfg.CORSOrigins()),
		api.WithMCP(cfg.MCPEnabled()),
		api.WithVersion(version),
		api.WithLogger(slogger),
	}

	var idle *apimiddleware.IdleTracker
	if cfg.ScaledownWindow() > 0 {
		idle = apimiddleware.NewIdleTracker()
		opts = append(opts, api.WithIdleTracker(idle))
	}
	if cfg.MetricsEnabled() {
		opts = append(opts, api.WithMetrics(metrics.New("jembed")))
	}

	apiServer := api.NewAPIServer(svc, opts...)
	apiServer.MountRoutes()

	server := api.NewServer(cfg.Addr(), slogger)
	server.Router().Mount("/", apiServer.Router())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	if idle != nil {
		window := cfg.ScaledownWindow()
		g.Go(func() error {
			if err := idle.Wait(gctx, window, idlePoll); err != nil {
				return nil
			}
			slogger.Info("scaling down after idle window", slog.Duration("window", window))
			return errScaledown
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errScaledown) {
		return err
	}

	slogger.Info("server stopped")
	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
