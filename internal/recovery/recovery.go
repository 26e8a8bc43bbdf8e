// Package recovery identifies tasks that were failing on the previous
// run and are absent from the current failing set.
package recovery

import (
	"fmt"
	"sort"

	"github.com/nholik/qlik-sentinel/internal/history"
)

// UnknownTaskName is the display fallback when the history log has no
// name on record for a recovered task id.
const UnknownTaskName = "Unknown Task Name"

// Detect returns "name (id)" entries for tasks present in the last
// run's notified set but absent from the current failing set.
//
// The baseline is the set of task ids whose occurrence record carries
// the single most recent notified-at moment in the snapshot. That
// bucket approximates "the previous poll's failing set" without an
// explicit run id; tasks that last failed on older runs are not part of
// the baseline and are never reported as recovered. An empty snapshot
// yields an empty list: no history never means everything recovered.
func Detect(snapshot history.Snapshot, currentFailingIDs map[string]struct{}) []string {
	if snapshot.Empty() {
		return nil
	}

	lastRun := snapshot.LatestRun()

	previous := map[string]struct{}{}
	for key, notifiedAt := range snapshot.Notified {
		if notifiedAt.Equal(lastRun) {
			previous[key.TaskID] = struct{}{}
		}
	}

	recovered := make([]string, 0)
	for taskID := range previous {
		if _, stillFailing := currentFailingIDs[taskID]; stillFailing {
			continue
		}
		name, ok := snapshot.TaskName(taskID)
		if !ok {
			name = UnknownTaskName
		}
		recovered = append(recovered, fmt.Sprintf("%s (%s)", name, taskID))
	}

	// Sort for deterministic report output
	sort.Strings(recovered)
	return recovered
}
