package notify

import (
	"context"

	"github.com/nholik/qlik-sentinel/internal/task"
)

// Notifier delivers a run's results: the failures selected for
// notification and the tasks that recovered since the previous run.
// The engine records history before delivery, so a delivery failure
// never un-records an occurrence (at-least-once, not exactly-once).
type Notifier interface {
	Notify(ctx context.Context, site string, failures []task.Failure, recovered []string) error
}
