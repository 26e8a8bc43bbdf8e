package qrs

import (
	"fmt"
	"strings"
	"time"
)

// parseQlikTime converts an ISO-8601 timestamp from QRS into a local,
// minute-truncated time. The zero time marks an unparsable or missing
// value; downstream classification treats those conservatively.
func parseQlikTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.In(time.Local).Truncate(time.Minute)
}

// executionInterval renders the gap between a task's last start and its
// next scheduled execution, e.g. "1 day, 2 hours, 30 minutes".
func executionInterval(startTime, nextExecution string) string {
	if startTime == "" || nextExecution == "" {
		return "N/A"
	}

	start, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return "N/A"
	}
	next, err := time.Parse(time.RFC3339, nextExecution)
	if err != nil {
		return "N/A"
	}

	diff := next.Sub(start)
	if diff < 0 {
		return "N/A"
	}

	return formatMinutes(int(diff.Round(time.Minute) / time.Minute))
}

func formatMinutes(totalMinutes int) string {
	days := totalMinutes / (24 * 60)
	remainder := totalMinutes % (24 * 60)
	hours := remainder / 60
	minutes := remainder % 60

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d day%s", days, plural(days)))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hour%s", hours, plural(hours)))
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d minute%s", minutes, plural(minutes)))
	}
	return strings.Join(parts, ", ")
}

func plural(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
