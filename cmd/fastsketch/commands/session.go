package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/config"
	"github.com/Sumatoshi-tech/fastsketch/pkg/observability"
	"github.com/Sumatoshi-tech/fastsketch/pkg/report"
	"github.com/Sumatoshi-tech/fastsketch/pkg/safeconv"
	"github.com/Sumatoshi-tech/fastsketch/pkg/search"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sigfile"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
	"github.com/Sumatoshi-tech/fastsketch/pkg/version"
)

// Standard OTel exporter variables honored when the config leaves them unset.
const (
	envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
)

// session is the wiring of one operation run: config, telemetry, loader,
// diagnostics and the search runner.
type session struct {
	cmd       *cobra.Command
	root      *rootOptions
	cfg       *config.Config
	providers observability.Providers
	runner    *search.Runner
	params    search.Params
	started   time.Time
}

func newSession(cmd *cobra.Command, root *rootOptions, flags *commonFlags) (*session, error) {
	cfg, err := config.LoadConfig(root.configPath)
	if err != nil {
		return nil, err
	}

	err = flags.apply(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	if root.logJSON {
		cfg.Logging.JSON = true
	}

	if root.metricsTextfile != "" {
		cfg.Telemetry.MetricsTextfile = root.metricsTextfile
	}

	if root.noColor {
		color.NoColor = true //nolint:reassign // fatih/color exposes this global toggle.
	}

	providers, err := observability.Init(observabilityConfig(cmd, root, cfg))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewSearchMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	diag := report.NewDiagnostics(providers.Logger, 0)
	diag.SetObserver(metrics)

	cores := config.ResolveCores(cfg.Search.Cores, nil)
	if cores.Capped {
		providers.Logger.Warn("requested cores exceed available, using available",
			"requested", cfg.Search.Cores, "available", cores.Available)
	}

	loader := sigfile.NewLoader(sigfile.Options{
		StrictSchema: cfg.Storage.StrictSchema,
		S3: sigfile.S3Options{
			Endpoint: cfg.Storage.S3Endpoint,
			Region:   cfg.Storage.S3Region,
			Secure:   cfg.Storage.S3Secure,
		},
	})

	return &session{
		cmd:       cmd,
		root:      root,
		cfg:       cfg,
		providers: providers,
		runner: &search.Runner{
			Loader:      loader,
			Logger:      providers.Logger,
			Tracer:      providers.Tracer,
			Metrics:     metrics,
			Diagnostics: diag,
		},
		params: search.Params{
			Selection: sketch.Selection{
				Ksize:   safeconv.MustIntToUint32(cfg.Search.Ksize),
				Scaled:  safeconv.MustIntToUint64(cfg.Search.Scaled),
				Moltype: cfg.Search.Moltype,
			},
			Workers:     cores.Workers,
			Stats:       statsFor(cfg),
			AllowFailed: cfg.Search.AllowFailed,
			Buffer:      cfg.Output.Buffer,
		},
		started: time.Now(),
	}, nil
}

func observabilityConfig(cmd *cobra.Command, root *rootOptions, cfg *config.Config) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(envOTLPHeaders))
	obsCfg.MetricsTextfile = cfg.Telemetry.MetricsTextfile
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.LogWriter = cmd.ErrOrStderr()
	obsCfg.LogLevel = logLevel(root, cfg)

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv(envOTLPEndpoint)
	}

	return obsCfg
}

func logLevel(root *rootOptions, cfg *config.Config) slog.Level {
	switch {
	case root.verbose:
		return slog.LevelDebug
	case root.quiet:
		return slog.LevelWarn
	default:
		return observability.ParseLogLevel(cfg.Logging.Level)
	}
}

func statsFor(cfg *config.Config) compare.Stats {
	stats := compare.StatsNone

	if cfg.Search.Jaccard {
		stats |= compare.StatJaccard
	}

	if cfg.Search.MaxContainment {
		stats |= compare.StatMaxContainment
	}

	return stats
}

func (s *session) thresholdBP() (uint64, error) {
	return config.ParseThresholdBP(s.cfg.Search.ThresholdBP)
}

// finish reports the run summary and flushes telemetry. runErr is returned
// joined with any reporting errors.
func (s *session) finish(op string, runErr error) error {
	summary := s.runner.Diagnostics.Summary(op, time.Since(s.started))

	var tableErr, yamlErr error

	if !s.root.quiet {
		tableErr = report.WriteTable(s.cmd.ErrOrStderr(), summary)
	}

	if s.root.summaryPath != "" {
		yamlErr = report.WriteYAML(s.root.summaryPath, summary)
	}

	shutdownErr := s.providers.Shutdown(context.Background())

	return errors.Join(runErr, tableErr, yamlErr, shutdownErr)
}
