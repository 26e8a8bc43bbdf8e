package history

import (
	"context"
	"time"

	"github.com/nholik/qlik-sentinel/internal/task"
)

// RunTimeLayout is the format used for the notified-at column.
const RunTimeLayout = "2006-01-02 15:04:05"

// Occurrence is one durable record: a failing task that was selected
// for notification at NotifiedAt.
type Occurrence struct {
	NotifiedAt time.Time
	Task       task.Failure
}

// Snapshot is the in-memory view of the history log used by one run:
// the latest notified-at per occurrence key, plus a task-id to
// task-name map for recovery reports. It is rebuilt from the full log
// at the start of every run and never mutated in place.
type Snapshot struct {
	Notified map[task.OccurrenceKey]time.Time
	Names    map[string]string
}

// EmptySnapshot returns a snapshot with no recorded occurrences.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Notified: map[task.OccurrenceKey]time.Time{},
		Names:    map[string]string{},
	}
}

// Empty reports whether the snapshot holds no occurrences.
func (s Snapshot) Empty() bool {
	return len(s.Notified) == 0
}

// LastNotified returns the notified-at moment recorded for the key.
func (s Snapshot) LastNotified(key task.OccurrenceKey) (time.Time, bool) {
	when, ok := s.Notified[key]
	return when, ok
}

// LatestRun returns the single most recent notified-at moment anywhere
// in the snapshot. The zero time is returned for an empty snapshot.
func (s Snapshot) LatestRun() time.Time {
	var latest time.Time
	for _, when := range s.Notified {
		if when.After(latest) {
			latest = when
		}
	}
	return latest
}

// TaskName resolves a task id to its last-seen display name.
func (s Snapshot) TaskName(taskID string) (string, bool) {
	name, ok := s.Names[taskID]
	return name, ok
}

// record registers one occurrence, keeping only the latest notified-at
// per key so the snapshot stays monotonic however many times a key was
// appended to the log.
func (s Snapshot) record(key task.OccurrenceKey, name string, notifiedAt time.Time) {
	if existing, ok := s.Notified[key]; !ok || notifiedAt.After(existing) {
		s.Notified[key] = notifiedAt
	}
	if name != "" {
		s.Names[key.TaskID] = name
	}
}

// Store persists notified occurrences across runs.
type Store interface {
	// Load reads the full history log into a compacted snapshot. A
	// missing log is the expected first-run state and yields an empty
	// snapshot, not an error.
	Load(ctx context.Context) (Snapshot, error)

	// Append durably adds records for a newly-notified batch without
	// touching previously stored records.
	Append(ctx context.Context, occurrences []Occurrence) error
}
