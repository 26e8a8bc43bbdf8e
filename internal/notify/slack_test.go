package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nholik/qlik-sentinel/internal/task"
	"github.com/rs/zerolog"
)

func makeFailures(count int) []task.Failure {
	failures := make([]task.Failure, 0, count)
	for i := 0; i < count; i++ {
		failures = append(failures, task.Failure{
			ID:          fmt.Sprintf("task-%d", i),
			Name:        fmt.Sprintf("Reload %d", i),
			Status:      task.StatusFinishedFail,
			FailedAt:    time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local),
			LastFailure: "FIRST TIME",
		})
	}
	return failures
}

func TestBuildSlackMessagesSingle(t *testing.T) {
	messages := buildSlackMessages("prod", makeFailures(2), []string{"Reload Z (z)"})
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if !strings.Contains(msg.Text, "Qlik site prod") {
		t.Fatalf("expected summary to include site name, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "2 failed task") {
		t.Fatalf("expected summary to include failure count, got %q", msg.Text)
	}
	if msg.Blocks == nil {
		t.Fatalf("expected blocks to be set")
	}
	// header + context + 2 failures + recovered section
	if len(msg.Blocks.BlockSet) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(msg.Blocks.BlockSet))
	}
}

func TestBuildSlackMessagesChunking(t *testing.T) {
	total := slackMaxFailures*2 + 3
	messages := buildSlackMessages("prod", makeFailures(total), []string{"Reload Z (z)"})
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}

	for i, msg := range messages {
		if msg.Blocks == nil {
			t.Fatalf("message %d missing blocks", i)
		}
		if len(msg.Blocks.BlockSet) > slackMaxBlocks {
			t.Fatalf("message %d exceeds block limit: %d", i, len(msg.Blocks.BlockSet))
		}
		if !strings.Contains(msg.Text, fmt.Sprintf("part %d/3", i+1)) {
			t.Fatalf("message %d missing part marker: %q", i, msg.Text)
		}
	}
}

func TestBuildSlackMessagesRecoveredOnly(t *testing.T) {
	messages := buildSlackMessages("prod", nil, []string{"Reload Z (z)"})
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if !strings.Contains(messages[0].Text, "1 recovered task") {
		t.Fatalf("expected recovered summary, got %q", messages[0].Text)
	}
}

func TestSlackNotifierRetriesOnServerError(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&calls, 1)
		if count <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logger := zerolog.New(io.Discard)
	notifier := NewSlackNotifier(logger, server.URL,
		WithSlackTiming(time.Millisecond, 1, 5*time.Millisecond, 10*time.Millisecond, 50*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := notifier.Notify(ctx, "prod", makeFailures(1), nil); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestNewSlackNotifierWithoutWebhookIsNoop(t *testing.T) {
	notifier := NewSlackNotifier(zerolog.Nop(), "")
	if _, ok := notifier.(*NoopNotifier); !ok {
		t.Fatalf("expected noop notifier, got %T", notifier)
	}
}

func TestSlackNotifierSkipsEmptyRun(t *testing.T) {
	notifier := NewSlackNotifier(zerolog.Nop(), "http://127.0.0.1:1")
	if err := notifier.Notify(context.Background(), "prod", nil, nil); err != nil {
		t.Fatalf("expected empty run to be a no-op, got %v", err)
	}
}
