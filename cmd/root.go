package main

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/mirror-minder/config"
	"github.com/angeloszaimis/mirror-minder/internal/cache"
	"github.com/angeloszaimis/mirror-minder/internal/fetcher"
	"github.com/angeloszaimis/mirror-minder/internal/httpserver"
	"github.com/angeloszaimis/mirror-minder/internal/judge"
	"github.com/angeloszaimis/mirror-minder/internal/metrics"
	"github.com/angeloszaimis/mirror-minder/internal/mirror"
	"github.com/angeloszaimis/mirror-minder/internal/monitor"
	"github.com/angeloszaimis/mirror-minder/internal/notify"
	"github.com/angeloszaimis/mirror-minder/internal/registry"
	"github.com/angeloszaimis/mirror-minder/pkg/logger"
)

var (
	logOnly bool
	verbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror-minder WORKDIR",
		Short: "Monitor package repo mirrors for freshness",
		Long: "mirror-minder continuously monitors package repo mirrors for freshness. " +
			"It files issues if the data a mirror vends falls too far behind the " +
			"authoritative mirrors, or if a mirror stays unreachable or unparseable " +
			"for too long.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().BoolVar(&logOnly, "log-only", false,
		"don't touch the issue tracker: if a package repo is bad, just log")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, workdir string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := cfg.Logging.Level
	if verbose {
		logLevel = config.LogLevelDebug
	}
	log := logger.New(logLevel, true, cfg.Environment)

	if logOnly {
		log.Warn("running in log-only mode")
	}

	workdir, err = filepath.Abs(workdir)
	if err != nil {
		return err
	}

	cachePath := cfg.Cache.Path
	if cachePath == "" {
		cachePath, err = cache.DefaultPath()
		if err != nil {
			return err
		}
	}
	store, err := cache.Open(cachePath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	sched := mirror.NewSchedule(
		cfg.Monitor.IntervalDuration(), cfg.Monitor.InitialDelayDuration())

	mon := &monitor.Monitor{
		Registry: &registry.Registry{
			ToolsRepo:       cfg.Registry.ToolsRepo,
			ToolsRepoURL:    cfg.Registry.ToolsRepoURL,
			MirrorDir:       cfg.Registry.MirrorDir,
			Workdir:         workdir,
			AuthorityPrefix: cfg.Registry.AuthorityPrefix,
			Schedule:        sched,
			Logger:          log,
		},
		Store:    store,
		Fetcher:  fetcher.New(cfg.Fetch.TimeoutDuration(), cfg.Fetch.UserAgent, log),
		Schedule: sched,
		Thresholds: judge.Thresholds{
			FreshnessTarget: cfg.Health.FreshnessTargetDuration(),
			StalenessLimit:  cfg.Health.StalenessLimitDuration(),
			GracePeriod:     cfg.Health.GracePeriodDuration(),
			FailLimit:       cfg.FailLimit(),
			CheckInterval:   cfg.Monitor.IntervalDuration(),
		},
		Reporter: &notify.Reporter{
			Tracker:      &notify.GHTracker{Repo: cfg.Tracker.Repo},
			ToolsRepoURL: cfg.Registry.ToolsRepoURL,
			AutoClose:    cfg.Tracker.AutoClose,
			LogOnly:      logOnly,
			Logger:       log,
		},
		Metrics:              metrics.New(),
		Logger:               log,
		Period:               cfg.Monitor.PeriodDuration(),
		PeriodJitterFraction: monitor.DefaultPeriodJitterFraction,
		Tick:                 cfg.Monitor.TickDuration(),
	}

	if cfg.Status.Enabled {
		shutdown, err := startStatusServer(cfg.Status.Address, mon.Metrics, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	return mon.Run(ctx)
}

func startStatusServer(addr string, m *metrics.Metrics, log *slog.Logger) (func(), error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", m.Handler())

	srv, err := httpserver.New(addr, mux)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("status server failed", slog.Any("err", err))
		}
	}()

	return func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("error shutting down status server", slog.Any("err", err))
		}
	}, nil
}
