package task

import (
	"strconv"
	"time"
)

// MinuteLayout is the minute-precision display and key format used
// throughout the history log and notifications.
const MinuteLayout = "2006-01-02 15:04"

// Status is a human-readable Qlik task execution status.
type Status string

const (
	StatusAbortInitiated Status = "AbortInitiated"
	StatusAborting       Status = "Aborting"
	StatusFinishedFail   Status = "FinishedFail"
	StatusError          Status = "Error"
)

// ErrorStatusCodes maps the QRS execution result codes that indicate a
// failed task to their display names.
var ErrorStatusCodes = map[int]Status{
	4:  StatusAbortInitiated,
	5:  StatusAborting,
	8:  StatusFinishedFail,
	11: StatusError,
}

// StatusName maps a QRS status code to its display name. Unknown codes
// are rendered numerically so they remain visible in reports.
func StatusName(code int) Status {
	if name, ok := ErrorStatusCodes[code]; ok {
		return name
	}
	return Status(strconv.Itoa(code))
}

// Failure is one failing task as observed during a single poll. A task
// fanned out to multiple recipients yields one Failure per recipient
// sharing the same ID and FailedAt.
type Failure struct {
	ID                string
	Name              string
	AppName           string
	Stream            string
	Status            Status
	FailedAt          time.Time // minute precision, local wall clock; zero when the platform omitted it
	ExecutionInterval string
	LogURL            string
	LogFilePath       string
	Recipient         string

	// LastFailure is a display label attached during classification:
	// "FIRST TIME" or the minute the previous notification was sent.
	LastFailure string
}

// FailedAtLabel renders the failure moment for reports, or "N/A" when
// the platform did not report one.
func (f Failure) FailedAtLabel() string {
	if f.FailedAt.IsZero() {
		return "N/A"
	}
	return f.FailedAt.Format(MinuteLayout)
}

// OccurrenceKey identifies one failure occurrence: a task plus the
// minute its failure was reported. The minute truncation absorbs
// sub-minute jitter in timestamps re-read from the platform.
type OccurrenceKey struct {
	TaskID string
	Minute string
}

// KeyFor builds the occurrence key for a task and its failure moment.
// A zero failure time produces a key with an empty minute; callers that
// care must treat such observations as unkeyed.
func KeyFor(taskID string, failedAt time.Time) OccurrenceKey {
	if failedAt.IsZero() {
		return OccurrenceKey{TaskID: taskID}
	}
	return OccurrenceKey{TaskID: taskID, Minute: failedAt.Format(MinuteLayout)}
}

// KeyForMinute builds an occurrence key from an already-formatted minute
// string, as read back from the history log.
func KeyForMinute(taskID, minute string) OccurrenceKey {
	if len(minute) > len(MinuteLayout) {
		minute = minute[:len(MinuteLayout)]
	}
	return OccurrenceKey{TaskID: taskID, Minute: minute}
}

// Key returns the occurrence key for this failure.
func (f Failure) Key() OccurrenceKey {
	return KeyFor(f.ID, f.FailedAt)
}
