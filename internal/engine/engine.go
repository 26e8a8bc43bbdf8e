// Package engine drives one poll-decide-record-notify cycle.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nholik/qlik-sentinel/internal/dedup"
	"github.com/nholik/qlik-sentinel/internal/history"
	"github.com/nholik/qlik-sentinel/internal/metrics"
	"github.com/nholik/qlik-sentinel/internal/notify"
	"github.com/nholik/qlik-sentinel/internal/recovery"
	"github.com/nholik/qlik-sentinel/internal/task"
	"github.com/rs/zerolog"
)

const defaultReminderEvery = 24 * time.Hour

// Source provides the current set of failing tasks.
type Source interface {
	FailingTasks(ctx context.Context) ([]task.Failure, error)
}

// Result summarizes one completed cycle.
type Result struct {
	Notified   []task.Failure
	Recovered  []string
	Suppressed int
}

// Engine owns a run: it pulls the failing set from the source, decides
// which failures to notify and which previously-failing tasks have
// recovered, records notified occurrences, and hands the results to
// the notifier.
type Engine struct {
	logger        zerolog.Logger
	site          string
	source        Source
	store         history.Store
	notifier      notify.Notifier
	metrics       *metrics.Metrics
	reminderEvery time.Duration
	now           func() time.Time
}

// Option customizes engine behavior.
type Option func(*Engine)

// WithReminderInterval sets the minimum gap between repeated
// notifications for the same failure occurrence. Zero disables
// suppression entirely: every poll re-alerts.
func WithReminderInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.reminderEvery = d
	}
}

// WithClock overrides the wall clock (for testing).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics enables cycle metrics collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New constructs an Engine for one site.
func New(logger zerolog.Logger, site string, source Source, store history.Store, notifier notify.Notifier, opts ...Option) *Engine {
	e := &Engine{
		logger:        logger,
		site:          site,
		source:        source,
		store:         store,
		notifier:      notifier,
		reminderEvery: defaultReminderEvery,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOnce executes a single cycle. Failing to fetch the current task
// set is fatal for the cycle and writes nothing; everything downstream
// of the fetch degrades rather than aborts.
func (e *Engine) RunOnce(ctx context.Context) (Result, error) {
	started := time.Now()

	failures, err := e.source.FailingTasks(ctx)
	if err != nil {
		e.metrics.IncSourceErrors()
		return Result{}, fmt.Errorf("fetch failing tasks: %w", err)
	}

	snapshot, err := e.store.Load(ctx)
	if err != nil {
		// Losing dedup state costs at most one cycle of duplicate
		// alerts; refusing to run costs the alert itself.
		e.logger.Warn().Err(err).Msg("history unreadable, treating as first run")
		snapshot = history.EmptySnapshot()
	}

	now := e.now()

	currentIDs := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		currentIDs[f.ID] = struct{}{}
	}

	// Recovery is computed against the snapshot as loaded, before this
	// run's occurrences are appended.
	recovered := recovery.Detect(snapshot, currentIDs)

	result := Result{Recovered: recovered}
	for i := range failures {
		decision := dedup.Decide(failures[i], snapshot, e.reminderEvery, now)
		failures[i].LastFailure = decision.Label

		if decision.Notify {
			e.logger.Info().
				Str("task", failures[i].Name).
				Str("task_id", failures[i].ID).
				Str("reason", string(decision.Reason)).
				Str("last_failure", decision.Label).
				Msg("task failure selected for notification")
			result.Notified = append(result.Notified, failures[i])
			continue
		}

		result.Suppressed++
		e.logger.Info().
			Str("task", failures[i].Name).
			Str("task_id", failures[i].ID).
			Str("reason", string(decision.Reason)).
			Str("last_sent", decision.LastNotified.Format(task.MinuteLayout)).
			Dur("elapsed", decision.Elapsed).
			Msg("skipping repeated task failure notification")
	}

	if len(result.Notified) > 0 {
		occurrences := make([]history.Occurrence, 0, len(result.Notified))
		for _, f := range result.Notified {
			occurrences = append(occurrences, history.Occurrence{NotifiedAt: now, Task: f})
		}
		if err := e.store.Append(ctx, occurrences); err != nil {
			e.logger.Error().Err(err).Msg("failed to append failure history")
		}
	} else {
		e.logger.Info().Msg("no new task failures to notify")
	}

	if len(result.Notified) > 0 || len(recovered) > 0 {
		if err := e.notifier.Notify(ctx, e.site, result.Notified, recovered); err != nil {
			// History already records the decision; delivery is
			// at-least-once and retried implicitly on the next cycle
			// only via the reminder window.
			e.logger.Error().Err(err).Msg("notification delivery failed")
		}
	}

	e.observe(started, len(failures), result)
	return result, nil
}

func (e *Engine) observe(started time.Time, failing int, result Result) {
	e.metrics.ObserveCycleDuration(time.Since(started))
	e.metrics.SetFailingTasks(e.site, failing)
	e.metrics.AddNotifications(e.site, len(result.Notified))
	e.metrics.AddSuppressed(e.site, result.Suppressed)
	e.metrics.AddRecovered(e.site, len(result.Recovered))
	e.metrics.SetLastSuccessfulCycleTimestamp(time.Now())
}
