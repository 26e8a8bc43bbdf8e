// Package coordinator manages one monitoring engine per configured
// Qlik site.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/nholik/qlik-sentinel/internal/config"
	"github.com/nholik/qlik-sentinel/internal/engine"
	"github.com/nholik/qlik-sentinel/internal/healthcheck"
	"github.com/nholik/qlik-sentinel/internal/history"
	"github.com/nholik/qlik-sentinel/internal/metrics"
	"github.com/nholik/qlik-sentinel/internal/notify"
	"github.com/nholik/qlik-sentinel/internal/qrs"
	"github.com/nholik/qlik-sentinel/internal/runner"
	"github.com/rs/zerolog"
)

// Coordinator holds one engine per site and drives them either once
// (external scheduling) or on an internal poll loop.
type Coordinator struct {
	logger    zerolog.Logger
	cfg       config.Config
	sites     []config.Site
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	tracker   *healthcheck.Tracker
	engines   map[string]*engine.Engine
	runErrors map[string]error
	mu        sync.RWMutex
}

// New constructs a Coordinator with an engine per site.
func New(logger zerolog.Logger, cfg config.Config, sites []config.Site, notifier notify.Notifier, collectors *metrics.Metrics, tracker *healthcheck.Tracker) (*Coordinator, error) {
	c := &Coordinator{
		logger:    logger,
		cfg:       cfg,
		sites:     sites,
		notifier:  notifier,
		metrics:   collectors,
		tracker:   tracker,
		engines:   make(map[string]*engine.Engine, len(sites)),
		runErrors: make(map[string]error),
	}

	for _, site := range sites {
		eng, err := c.buildEngine(site)
		if err != nil {
			return nil, err
		}
		c.engines[site.Name] = eng
	}

	return c, nil
}

func (c *Coordinator) buildEngine(site config.Site) (*engine.Engine, error) {
	siteLogger := c.logger.With().Str("site", site.Name).Logger()

	client, err := qrs.NewClient(siteLogger, qrs.Config{
		Server:           site.Server,
		UserDirectory:    site.UserDirectory,
		UserID:           site.UserID,
		CustomProperty:   site.CustomProperty,
		DefaultRecipient: site.DefaultRecipient,
		LogArchivePath:   site.LogArchivePath,
		SkipTLSVerify:    site.SkipTLSVerify,
		Timeout:          site.APITimeout,
		MaxRetries:       site.APIMaxRetries,
		RetryDelay:       site.APIRetryDelay,
		Debug:            site.APIDebug,
	})
	if err != nil {
		return nil, err
	}

	store := history.NewFileStore(site.HistoryPath, siteLogger)

	return engine.New(siteLogger, site.Name, client, store, c.notifier,
		engine.WithReminderInterval(c.cfg.ReminderEvery),
		engine.WithMetrics(c.metrics),
	), nil
}

// RunOnce executes a single cycle for every site, sequentially. All
// sites run even when an earlier one fails; the first error is
// returned for the exit code.
func (c *Coordinator) RunOnce(ctx context.Context) error {
	started := time.Now()

	var firstErr error
	for _, site := range c.sites {
		if err := c.runSiteOnce(ctx, site.Name); err != nil {
			c.logger.Error().Err(err).Str("site", site.Name).Msg("site cycle failed")
			c.recordError(site.Name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	c.tracker.RecordCycle(time.Since(started), len(c.sites))
	return firstErr
}

// Run starts a poll loop per site and blocks until context is canceled.
// Returns nil on clean shutdown; logs any per-site errors internally.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().
		Int("sites", len(c.sites)).
		Msg("starting coordinator")

	var wg sync.WaitGroup
	for _, site := range c.sites {
		wg.Add(1)
		go c.spawnRunner(ctx, &wg, site)
	}

	wg.Wait()
	c.logger.Info().Msg("all runners stopped")

	c.mu.RLock()
	defer c.mu.RUnlock()
	for site, err := range c.runErrors {
		if err != nil {
			c.logger.Error().Err(err).Str("site", site).Msg("runner error")
		}
	}

	return nil
}

// spawnRunner runs the poll loop for a single site.
func (c *Coordinator) spawnRunner(ctx context.Context, wg *sync.WaitGroup, site config.Site) {
	defer wg.Done()

	siteLogger := c.logger.With().Str("site", site.Name).Logger()

	r := runner.New(siteLogger, c.cfg.PollInterval, func(ctx context.Context) error {
		started := time.Now()
		err := c.runSiteOnce(ctx, site.Name)
		if err == nil {
			// One runner per site: each cycle covers exactly one site.
			c.tracker.RecordCycle(time.Since(started), 1)
		}
		return err
	})

	siteLogger.Info().Msg("runner started")

	if err := r.Run(ctx); err != nil {
		siteLogger.Error().Err(err).Msg("runner exited with error")
		c.recordError(site.Name, err)
	} else {
		siteLogger.Info().Msg("runner exited cleanly")
	}
}

func (c *Coordinator) runSiteOnce(ctx context.Context, name string) error {
	c.mu.RLock()
	eng := c.engines[name]
	c.mu.RUnlock()

	_, err := eng.RunOnce(ctx)
	return err
}

// recordError records a per-site error for later reporting.
func (c *Coordinator) recordError(site string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runErrors[site] = err
}

// Engines returns a copy of the engines map for testing.
func (c *Coordinator) Engines() map[string]*engine.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*engine.Engine, len(c.engines))
	for k, v := range c.engines {
		result[k] = v
	}
	return result
}
