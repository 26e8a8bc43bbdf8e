package notify

import (
	"context"
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

func TestWebhookNotifierTemplateRendering(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, `{"site":"{{ .Site }}","failures":{{ len .Failures }},"recovered":{{ len .Recovered }}}`)
	if err != nil {
		t.Fatalf("NewWebhookNotifier error: %v", err)
	}

	failures := []task.Failure{{ID: "a", Name: "Reload A", Status: task.StatusError}}

	if err := notifier.Notify(context.Background(), "prod", failures, []string{"Reload Z (z)"}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if !strings.Contains(body, `"site":"prod"`) {
		t.Fatalf("expected site in payload, got %s", body)
	}
	if !strings.Contains(body, `"failures":1`) {
		t.Fatalf("expected failure count in payload, got %s", body)
	}
	if !strings.Contains(body, `"recovered":1`) {
		t.Fatalf("expected recovered count in payload, got %s", body)
	}
}

func TestWebhookNotifierDefaultTemplate(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, "")
	if err != nil {
		t.Fatalf("NewWebhookNotifier error: %v", err)
	}

	failures := []task.Failure{{ID: "a", Name: "Reload A", Status: task.StatusError}}
	if err := notifier.Notify(context.Background(), "prod", failures, nil); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if !strings.Contains(body, `"Reload A"`) {
		t.Fatalf("expected task name in payload, got %s", body)
	}
}

func TestWebhookNotifierRetriesOnServerError(t *testing.T) {
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

	notifier, err := NewWebhookNotifier(zerolog.Nop(), server.URL, "")
	if err != nil {
		t.Fatalf("NewWebhookNotifier error: %v", err)
	}
	notifier.poster.timing.backoffInitial = time.Millisecond
	notifier.poster.timing.backoffMax = 2 * time.Millisecond
	notifier.poster.timing.backoffMaxElapsed = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	failures := []task.Failure{{ID: "a", Name: "Reload A", Status: task.StatusError}}
	if err := notifier.Notify(ctx, "prod", failures, nil); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestWebhookNotifierInvalidTemplate(t *testing.T) {
	_, err := NewWebhookNotifier(zerolog.Nop(), "http://example.com", "{{")
	if err == nil {
		t.Fatalf("expected template parse error")
	}
}

func TestWebhookNotifierEmptyURLIsNil(t *testing.T) {
	notifier, err := NewWebhookNotifier(zerolog.Nop(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier != nil {
		t.Fatalf("expected nil notifier for empty URL")
	}
}
