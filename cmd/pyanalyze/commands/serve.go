package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	nethttppprof "net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pyanalyze/internal/config"
	"github.com/Sumatoshi-tech/pyanalyze/internal/lsp"
	"github.com/Sumatoshi-tech/pyanalyze/internal/mcpserver"
	"github.com/Sumatoshi-tech/pyanalyze/internal/obs"
	"github.com/Sumatoshi-tech/pyanalyze/internal/obslog"
	"github.com/Sumatoshi-tech/pyanalyze/pkg/version"
)

// pprofReadHeaderTimeout avoids an unbounded-read DoS surface on the debug
// pprof listener, matching the teacher's own http.Server hardening.
const pprofReadHeaderTimeout = 10 * time.Second

// NewServeCommand builds the "pyanalyze serve" command: a long-running
// process exposing the scheduler over either LSP or MCP on stdio, chosen
// by --transport, with optional Prometheus metrics and pprof endpoints.
func NewServeCommand() *cobra.Command {
	var (
		configPath   string
		root         string
		typeshedRoot string
		transport    string
		otlpEndpoint string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis scheduler as a long-lived server",
		Long: `Serve starts the scheduler and exposes it over one of two transports:

  lsp   Language Server Protocol on stdio, for editor integration
  mcp   Model Context Protocol on stdio, for AI agent integration

Metrics and tracing are sent to OTLP when --otlp-endpoint is set, and to a
Prometheus /metrics endpoint when server.metrics_url is configured.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(config.Params{ConfigPath: configPath})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			return runServe(cobraCmd.Context(), cfg, root, typeshedRoot, transport, otlpEndpoint)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a .pyanalyze.yaml config file")
	cmd.Flags().StringVar(&root, "root", ".", "source root imports are resolved against")
	cmd.Flags().StringVar(&typeshedRoot, "typeshed", "", "typeshed stub root for library imports")
	cmd.Flags().StringVar(&transport, "transport", "lsp", "transport to serve: lsp or mcp")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP gRPC collector endpoint")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, root, typeshedRoot, transport, otlpEndpoint string) error {
	mode := obslog.ModeLSP
	if transport == "mcp" {
		mode = obslog.ModeMCP
	}

	log := obslog.New(os.Stderr, obslog.Options{
		Service: "pyanalyze",
		Env:     os.Getenv("PYANALYZE_ENV"),
		Mode:    mode,
		Level:   logLevel(cfg.Logging.Level),
		JSON:    cfg.Logging.Format == "json",
	})

	registerer := prometheus.NewRegistry()

	providers, err := obs.Init(obs.Config{
		ServiceName:          "pyanalyze",
		ServiceVersion:       version.Version,
		OTLPEndpoint:         otlpEndpoint,
		PrometheusRegisterer: registerer,
	})
	if err != nil {
		return fmt.Errorf("serve: init observability: %w", err)
	}

	defer func() {
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
			log.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	stopMetrics := maybeServeMetrics(cfg, registerer, log)
	defer stopMetrics()

	stopPprof := maybeServePprof(cfg, log)
	defer stopPprof()

	facade, parser := buildFacade(cfg, []string{root}, typeshedRoot, log)
	defer facade.Dispose()

	switch transport {
	case "mcp":
		redMetrics, metricsErr := obs.NewREDMetrics(providers.Meter)
		if metricsErr != nil {
			return fmt.Errorf("serve: %w", metricsErr)
		}

		srv := mcpserver.NewServer(facade, mcpserver.ServerDeps{
			Logger:  log,
			Metrics: redMetrics,
			Tracer:  providers.Tracer,
		})

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	default:
		srv := lsp.NewServer(facade, parser, log)

		if err := srv.Run(); err != nil {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	}
}

// maybeServeMetrics starts a Prometheus /metrics HTTP server when
// server.metrics_url is configured, returning a no-op stop function
// otherwise.
func maybeServeMetrics(cfg *config.Config, registerer *prometheus.Registry, log *slog.Logger) func() {
	if cfg.Server.MetricsURL == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.Server.MetricsURL,
		Handler:           mux,
		ReadHeaderTimeout: pprofReadHeaderTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}

// maybeServePprof starts a debug pprof HTTP server on server.pprof_port,
// with explicit handler registration (no DefaultServeMux exposure) and a
// read-header timeout, matching the teacher's own pprof wiring.
func maybeServePprof(cfg *config.Config, log *slog.Logger) func() {
	if cfg.Server.PprofPort == 0 {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", nethttppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", nethttppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", nethttppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", nethttppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", nethttppprof.Trace)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.PprofPort),
		Handler:           mux,
		ReadHeaderTimeout: pprofReadHeaderTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("pprof server stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
