package qrs

import (
	"testing"
	"time"
)

func TestFormatMinutes(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{0, "0 minutes"},
		{1, "1 minute"},
		{59, "59 minutes"},
		{60, "1 hour"},
		{61, "1 hour, 1 minute"},
		{1440, "1 day"},
		{1501, "1 day, 1 hour, 1 minute"},
		{2880, "2 days"},
		{4350, "3 days, 30 minutes"},
	}

	for _, tc := range cases {
		if got := formatMinutes(tc.minutes); got != tc.want {
			t.Fatalf("formatMinutes(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}

func TestExecutionInterval(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		start string
		next  string
		want  string
	}{
		{"daily", start.Format(time.RFC3339), start.Add(24 * time.Hour).Format(time.RFC3339), "1 day"},
		{"ninety minutes", start.Format(time.RFC3339), start.Add(90 * time.Minute).Format(time.RFC3339), "1 hour, 30 minutes"},
		{"negative", start.Format(time.RFC3339), start.Add(-time.Hour).Format(time.RFC3339), "N/A"},
		{"missing start", "", start.Format(time.RFC3339), "N/A"},
		{"missing next", start.Format(time.RFC3339), "", "N/A"},
		{"garbage", "not-a-time", start.Format(time.RFC3339), "N/A"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := executionInterval(tc.start, tc.next); got != tc.want {
				t.Fatalf("executionInterval(%q, %q) = %q, want %q", tc.start, tc.next, got, tc.want)
			}
		})
	}
}

func TestParseQlikTime(t *testing.T) {
	raw := "2024-05-01T10:30:45Z"
	got := parseQlikTime(raw)
	want := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC).In(time.Local)
	if !got.Equal(want) {
		t.Fatalf("parseQlikTime(%q) = %v, want %v", raw, got, want)
	}

	if !parseQlikTime("").IsZero() {
		t.Fatalf("expected zero time for empty input")
	}
	if !parseQlikTime("garbage").IsZero() {
		t.Fatalf("expected zero time for unparsable input")
	}
}
