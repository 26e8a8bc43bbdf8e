package notify

import (
	"context"

	"github.com/nholik/qlik-sentinel/internal/task"
	"github.com/rs/zerolog"
)

// DryRunNotifier logs what would be delivered without sending anything.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, site string, failures []task.Failure, recovered []string) error {
	for _, f := range failures {
		n.logger.Info().
			Str("site", site).
			Str("task", f.Name).
			Str("task_id", f.ID).
			Str("status", string(f.Status)).
			Str("failed_at", f.FailedAtLabel()).
			Str("recipient", f.Recipient).
			Str("last_failure", f.LastFailure).
			Msg("[DRY-RUN] Would notify")
	}
	for _, name := range recovered {
		n.logger.Info().
			Str("site", site).
			Str("task", name).
			Msg("[DRY-RUN] Would report recovery")
	}
	return nil
}
