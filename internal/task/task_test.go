package task

import (
	"testing"
	"time"
)

func TestStatusName(t *testing.T) {
	tests := []struct {
		code int
		want Status
	}{
		{4, StatusAbortInitiated},
		{5, StatusAborting},
		{8, StatusFinishedFail},
		{11, StatusError},
		{7, Status("7")},
		{0, Status("0")},
	}

	for _, tt := range tests {
		if got := StatusName(tt.code); got != tt.want {
			t.Errorf("StatusName(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestKeyForTruncatesToMinute(t *testing.T) {
	a := time.Date(2024, 5, 1, 10, 30, 12, 0, time.Local)
	b := time.Date(2024, 5, 1, 10, 30, 47, 0, time.Local)

	if KeyFor("t", a) != KeyFor("t", b) {
		t.Fatal("expected sub-minute jitter to share one key")
	}
	if KeyFor("t", a) == KeyFor("t", a.Add(time.Minute)) {
		t.Fatal("expected distinct keys across minutes")
	}
}

func TestKeyForZeroTimeIsUnkeyed(t *testing.T) {
	key := KeyFor("t", time.Time{})
	if key.Minute != "" {
		t.Fatalf("expected empty minute for zero time, got %q", key.Minute)
	}
}

func TestKeyForMinuteTruncatesTrailingSeconds(t *testing.T) {
	withSeconds := KeyForMinute("t", "2024-05-01 10:30:45")
	exact := KeyForMinute("t", "2024-05-01 10:30")

	if withSeconds != exact {
		t.Fatalf("expected %v to equal %v", withSeconds, exact)
	}
}

func TestFailedAtLabel(t *testing.T) {
	f := Failure{FailedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)}
	if got := f.FailedAtLabel(); got != "2024-05-01 10:30" {
		t.Errorf("unexpected label %q", got)
	}

	if got := (Failure{}).FailedAtLabel(); got != "N/A" {
		t.Errorf("expected N/A for zero time, got %q", got)
	}
}
