// Package main runs one jobwatch pass and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobwatch/internal/clock/system"
	"github.com/JakeFAU/jobwatch/internal/config"
	"github.com/JakeFAU/jobwatch/internal/crawler"
	"github.com/JakeFAU/jobwatch/internal/extract"
	collyfetcher "github.com/JakeFAU/jobwatch/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/jobwatch/internal/fetcher/headless"
	"github.com/JakeFAU/jobwatch/internal/id/uuid"
	"github.com/JakeFAU/jobwatch/internal/logging"
	"github.com/JakeFAU/jobwatch/internal/metrics"
	"github.com/JakeFAU/jobwatch/internal/notify"
	"github.com/JakeFAU/jobwatch/internal/storage/csvstore"
	"github.com/JakeFAU/jobwatch/internal/storage/postgres"
)

const pushTimeout = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	envPath := flag.String("env", "", "Path to env file (default .env, optional)")
	flag.Parse()

	os.Exit(run(*cfgPath, *envPath))
}

// run returns the process exit code. Stage failures are logged and still
// exit 0; only startup failures exit 1.
func run(cfgPath, envPath string) int {
	cfg, err := config.Load(cfgPath, envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, err := logging.New(logging.Config{
		Dir:         cfg.Logging.Dir,
		File:        cfg.Logging.File,
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := wire(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", zap.Error(err))
		return 1
	}
	defer cleanup()

	res := engine.Run(ctx)
	logSummary(logger, res)

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn("Metrics push failed", zap.Error(err))
		}
	}
	return 0
}

func wire(ctx context.Context, cfg config.Config, logger *zap.Logger) (*crawler.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var fetcher crawler.Fetcher
	if cfg.HTTP.Headless {
		hf := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         cfg.Site.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
			SettleDelay:       500 * time.Millisecond,
		})
		closers = append(closers, hf.Close)
		fetcher = hf
	} else {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Site.UserAgent,
			Timeout:   cfg.HTTPTimeout(),
		})
	}

	store, err := csvstore.New(csvstore.Config{Path: cfg.Store.Path})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init listing store: %w", err)
	}

	var mirror crawler.Mirror
	if cfg.DB.DSN != "" {
		pg, err := openMirror(ctx, cfg.DB)
		if err != nil {
			logger.Warn("Postgres mirror disabled", zap.Error(err))
		} else {
			closers = append(closers, pg.Close)
			mirror = pg
		}
	}

	var notifier crawler.Notifier
	if cfg.Mail.Enabled {
		n, err := notify.New(notify.Config{
			Host:      cfg.Mail.Host,
			Port:      cfg.Mail.Port,
			Username:  cfg.Mail.User,
			Password:  cfg.Mail.Password,
			Recipient: cfg.Mail.Recipient,
			Subject:   cfg.Mail.Subject,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init notifier: %w", err)
		}
		notifier = n
	}

	runCfg := crawler.Config{BaseURL: cfg.Site.BaseURL, MaxPages: cfg.Site.MaxPages}
	if err := runCfg.Validate(); err != nil {
		cleanup()
		return nil, nil, err
	}

	engine := crawler.NewEngine(
		runCfg,
		fetcher,
		extract.New(cfg.Site.Origin),
		store,
		mirror,
		notifier,
		system.New(),
		uuid.NewUUIDGenerator(),
		logger.Named("engine"),
	)
	return engine, cleanup, nil
}

// openMirror connects the optional Postgres mirror. Failures leave the run
// CSV-only.
func openMirror(ctx context.Context, db config.DBConfig) (*postgres.ListingStore, error) {
	pg, err := postgres.NewListingStore(ctx, postgres.ListingStoreConfig{
		DSN:      db.DSN,
		Table:    db.Table,
		MaxConns: db.MaxConns,
	})
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func logSummary(logger *zap.Logger, res crawler.Result) {
	fields := []zap.Field{
		zap.String("run_id", res.RunID),
		zap.Duration("duration", res.Duration()),
		zap.Int("pages", len(res.Pages)),
		zap.Int("fetch_failures", res.FetchFailures()),
		zap.Int("extracted", res.Extracted),
		zap.Int("new", len(res.New)),
		zap.Int("written", res.Written),
		zap.String("store", string(res.StoreStatus)),
		zap.String("mirror", string(res.MirrorStatus)),
		zap.String("notify", string(res.NotifyStatus)),
	}
	if err := res.Err(); err != nil {
		logger.Warn("Run finished with errors", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("Run finished", fields...)
}
