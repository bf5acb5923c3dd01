package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/protoprune/pkg/config"
	"github.com/platinummonkey/protoprune/pkg/observability"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
}

// NewRootCommand creates the protoprune command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "protoprune",
		Short:         "Prune protobuf schemas to what a set of roots reaches",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file (default: protoprune.yaml in the working directory)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")

	root.AddCommand(
		newPruneCommand(opts),
		newPartitionCommand(opts),
		newWatchCommand(opts, version),
	)
	return root
}

// app is the state shared by a command's run.
type app struct {
	cfg         *config.Config
	log         *logrus.Logger
	registry    *prometheus.Registry
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
	providers   *observability.OTelProviders
}

// newApp loads and validates the configuration after applying flag overrides, then
// sets up logging, metrics and tracing.
func newApp(ctx context.Context, cmd *cobra.Command, opts *rootOptions, version string, override func(*config.Config)) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if opts.metricsFile != "" {
		cfg.MetricsFile = opts.metricsFile
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	if cfg.Tracing.ServiceVersion == "" || cfg.Tracing.ServiceVersion == "dev" {
		cfg.Tracing.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Insecure:       cfg.Tracing.Insecure,
	}, logger)
	if err != nil {
		return nil, err
	}

	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		shutdownTelemetry(ctx, providers, logger)
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &app{
		cfg:         cfg,
		log:         logger,
		registry:    registry,
		metrics:     observability.NewMetrics(registry),
		otelMetrics: otelMetrics,
		providers:   providers,
	}, nil
}

func (a *app) runner() *Runner {
	return NewRunner(a.cfg, a.log, a.metrics, a.otelMetrics)
}

// close writes the metrics file, if configured, and flushes telemetry.
func (a *app) close() {
	if a.cfg.MetricsFile != "" {
		if err := observability.WriteFile(a.cfg.Path(a.cfg.MetricsFile), a.registry); err != nil {
			a.log.WithError(err).Error("Failed to write metrics file")
		}
	}
	shutdownTelemetry(context.Background(), a.providers, a.log)
}

// shutdownTelemetry flushes and stops the OTel providers. Failures are logged.
func shutdownTelemetry(ctx context.Context, providers *observability.OTelProviders, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := observability.ShutdownOTel(ctx, providers, log); err != nil {
		log.WithError(err).Warn("Failed to flush telemetry")
	}
}
