package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobwatch/internal/id/uuid"
	"github.com/JakeFAU/jobwatch/internal/listing"
	"github.com/JakeFAU/jobwatch/internal/metrics"
)

// Config holds the settings for one run.
type Config struct {
	BaseURL  string
	MaxPages int
}

// Validate checks the run settings before any page is fetched.
func (c Config) Validate() error {
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be > 0")
	}
	if _, err := PageURL(c.BaseURL, 1); err != nil {
		return fmt.Errorf("base url: %w", err)
	}
	return nil
}

// Engine runs fetch → extract → dedup → persist → notify once, strictly in that order.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	extractor Extractor
	store     Store
	mirror    Mirror
	notifier  Notifier
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger
}

// NewEngine wires the pipeline. mirror and notifier may be nil, in which case
// those stages are recorded as skipped.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	extractor Extractor,
	store Store,
	mirror Mirror,
	notifier Notifier,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Engine {
	if clock == nil {
		clock = utcClock{}
	}
	if ids == nil {
		ids = uuid.NewUUIDGenerator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		mirror:    mirror,
		notifier:  notifier,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// Run executes one complete pass over the configured pages. It never returns
// an error: every failure is logged and recorded on the Result.
func (e *Engine) Run(ctx context.Context) (res Result) {
	res = Result{
		StartedAt:    e.clock.Now(),
		StoreStatus:  StatusSkipped,
		MirrorStatus: StatusSkipped,
		NotifyStatus: StatusSkipped,
	}
	runID, err := e.ids.NewID()
	if err != nil {
		e.logger.Warn("Failed to generate run id", zap.Error(err))
	}
	res.RunID = runID
	logger := e.logger.With(zap.String("run_id", runID))
	defer func() {
		res.FinishedAt = e.clock.Now()
		metrics.ObserveRun(res.Duration(), res.Err() == nil, res.FinishedAt)
	}()

	candidates := e.scrapePages(ctx, logger, &res)
	res.Extracted = len(candidates)
	metrics.ObserveExtraction(len(candidates), countDegraded(candidates))

	if err := ctx.Err(); err != nil {
		logger.Warn("Run canceled before persistence", zap.Error(err))
		return res
	}

	fresh, err := e.store.FilterNew(ctx, candidates)
	if err != nil {
		res.StoreStatus = StatusIOError
		res.StoreErr = fmt.Errorf("load stored listings: %w", err)
		logger.Error("Failed to read listing store", zap.Error(err))
		return res
	}
	res.New = fresh
	metrics.ObserveNewListings(len(fresh))

	if len(fresh) == 0 {
		logger.Info("No new listings found", zap.Int("extracted", len(candidates)))
		return res
	}

	written, err := e.store.Append(ctx, fresh)
	res.Written = written
	metrics.ObserveWritten(written)
	if err != nil {
		res.StoreStatus = StatusIOError
		res.StoreErr = fmt.Errorf("append listings: %w", err)
		logger.Error("Failed to save listings; notification skipped", zap.Error(err))
		return res
	}
	res.StoreStatus = StatusSuccess
	logger.Info("Saved listings", zap.Int("count", written))
	logger.Info("Added new listings", zap.Int("count", len(fresh)))

	e.mirrorListings(ctx, logger, runID, fresh, &res)
	e.notify(ctx, logger, fresh, &res)
	return res
}

func (e *Engine) scrapePages(ctx context.Context, logger *zap.Logger, res *Result) []listing.Listing {
	var all []listing.Listing
	for page := 1; page <= e.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("Stopping page loop", zap.Int("page", page), zap.Error(err))
			break
		}
		outcome, listings := e.scrapePage(ctx, logger, page)
		res.Pages = append(res.Pages, outcome)
		all = append(all, listings...)
	}
	return all
}

func (e *Engine) scrapePage(ctx context.Context, logger *zap.Logger, page int) (PageOutcome, []listing.Listing) {
	outcome := PageOutcome{Page: page}
	pageURL, err := PageURL(e.cfg.BaseURL, page)
	if err != nil {
		outcome.Status = StatusTransportError
		outcome.Err = err
		logger.Error("Failed to build page url", zap.Int("page", page), zap.Error(err))
		return outcome, nil
	}
	outcome.URL = pageURL
	logger.Info("Scraping page", zap.Int("page", page), zap.String("url", pageURL))

	resp, err := e.fetcher.Fetch(ctx, FetchRequest{URL: pageURL, Page: page})
	outcome.StatusCode = resp.StatusCode
	outcome.Duration = resp.Duration
	if err != nil {
		outcome.Status = StatusTransportError
		outcome.Err = err
		metrics.ObservePage(pageURL, string(outcome.Status), 0)
		logger.Error("Error while scraping page", zap.Int("page", page), zap.String("url", pageURL), zap.Error(err))
		return outcome, nil
	}

	extraction, err := e.extractor.Extract(resp.Body)
	if err != nil {
		outcome.Status = StatusParseDegraded
		outcome.Err = err
		metrics.ObservePage(pageURL, string(outcome.Status), len(resp.Body))
		logger.Error("Error while parsing page", zap.Int("page", page), zap.String("url", pageURL), zap.Error(err))
		return outcome, nil
	}

	outcome.Listings = len(extraction.Listings)
	outcome.Degraded = extraction.Degraded
	outcome.Status = StatusSuccess
	if extraction.Degraded > 0 {
		outcome.Status = StatusParseDegraded
		logger.Warn("Listings with missing fields",
			zap.Int("page", page),
			zap.Int("degraded", extraction.Degraded),
			zap.Int("listings", outcome.Listings),
		)
	}
	metrics.ObservePage(pageURL, string(outcome.Status), len(resp.Body))
	logger.Debug("Page extracted",
		zap.Int("page", page),
		zap.Int("containers", extraction.Containers),
		zap.Int("listings", outcome.Listings),
	)
	return outcome, extraction.Listings
}

func (e *Engine) mirrorListings(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	fresh []listing.Listing,
	res *Result,
) {
	if e.mirror == nil {
		return
	}
	n, err := e.mirror.SaveListings(ctx, runID, fresh)
	res.Mirrored = n
	if err != nil {
		res.MirrorStatus = StatusIOError
		res.MirrorErr = err
		logger.Error("Failed to mirror listings", zap.Error(err))
		return
	}
	res.MirrorStatus = StatusSuccess
	logger.Info("Mirrored listings", zap.Int("inserted", n))
}

func (e *Engine) notify(ctx context.Context, logger *zap.Logger, fresh []listing.Listing, res *Result) {
	if e.notifier == nil {
		logger.Info("Notifier disabled; skipping email")
		return
	}
	if err := e.notifier.Notify(ctx, fresh); err != nil {
		res.NotifyStatus = StatusDispatchError
		res.NotifyErr = err
		metrics.ObserveNotification(string(res.NotifyStatus))
		logger.Error("Error sending email", zap.Error(err))
		return
	}
	res.NotifyStatus = StatusSuccess
	metrics.ObserveNotification(string(res.NotifyStatus))
	logger.Info("Email sent", zap.Int("listings", len(fresh)))
}

func countDegraded(listings []listing.Listing) int {
	n := 0
	for _, l := range listings {
		if l.Degraded() {
			n++
		}
	}
	return n
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
