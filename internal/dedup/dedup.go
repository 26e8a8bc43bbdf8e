// Package dedup decides whether a failing task warrants a notification
// or is a repeat still inside the suppression window.
package dedup

import (
	"time"

	"github.com/nholik/qlik-sentinel/internal/history"
	"github.com/nholik/qlik-sentinel/internal/task"
)

// FirstTimeLabel is the display label for a failure with no prior
// notification on record.
const FirstTimeLabel = "FIRST TIME"

// Reason explains a classification outcome. Suppressions in particular
// must be explainable, not just boolean.
type Reason string

const (
	// ReasonFirstTime marks a failure whose key has never been notified.
	ReasonFirstTime Reason = "first_time"
	// ReasonReminderDue marks a repeat failure past the reminder threshold.
	ReasonReminderDue Reason = "reminder_due"
	// ReasonReminderDisabled marks the reminder-interval-zero escape hatch:
	// every poll that finds the task failing re-alerts.
	ReasonReminderDisabled Reason = "reminder_disabled"
	// ReasonMissingTimestamp marks an observation the platform reported
	// without a failure time. It cannot participate in dedup and is
	// notified conservatively: a duplicate email beats a silenced alert.
	ReasonMissingTimestamp Reason = "missing_timestamp"
	// ReasonRecentlyNotified marks a repeat failure still inside the
	// suppression window.
	ReasonRecentlyNotified Reason = "recently_notified"
)

// Decision is the classification of one observed failure.
type Decision struct {
	Notify bool
	Reason Reason

	// Label is the "time since first failure" display value: FirstTimeLabel
	// or the minute the previous notification went out.
	Label string

	// LastNotified and Elapsed are set when the key had a prior
	// notification, for diagnostics and suppression logging.
	LastNotified time.Time
	Elapsed      time.Duration
}

// Decide classifies one failing task against the history snapshot.
//
// Times are compared as naive local wall-clock values with seconds
// stripped, assuming a single-timezone deployment; see the site
// configuration notes.
func Decide(f task.Failure, snapshot history.Snapshot, reminderEvery time.Duration, now time.Time) Decision {
	if f.FailedAt.IsZero() {
		return Decision{Notify: true, Reason: ReasonMissingTimestamp, Label: FirstTimeLabel}
	}

	lastSent, seen := snapshot.LastNotified(f.Key())

	label := FirstTimeLabel
	if seen {
		label = lastSent.Format(task.MinuteLayout)
	}

	if reminderEvery == 0 {
		d := Decision{Notify: true, Reason: ReasonReminderDisabled, Label: label}
		if seen {
			d.LastNotified = lastSent
		}
		return d
	}

	if !seen {
		return Decision{Notify: true, Reason: ReasonFirstTime, Label: label}
	}

	// Both sides are stripped to minutes so the stored seconds of the
	// previous send cannot push a boundary reminder under the threshold.
	elapsed := now.Truncate(time.Minute).Sub(lastSent.Truncate(time.Minute))
	if elapsed >= reminderEvery {
		return Decision{
			Notify:       true,
			Reason:       ReasonReminderDue,
			Label:        label,
			LastNotified: lastSent,
			Elapsed:      elapsed,
		}
	}

	return Decision{
		Reason:       ReasonRecentlyNotified,
		Label:        label,
		LastNotified: lastSent,
		Elapsed:      elapsed,
	}
}
