package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/nholik/qlik-sentinel/internal/task"
	"github.com/rs/zerolog"
)

const defaultWebhookTemplate = `{"site":"{{ .Site }}","failures":{{ toJson .Failures }},"recovered":{{ toJson .Recovered }}}`

// WebhookPayload is the template context for webhook notifications.
type WebhookPayload struct {
	Site        string
	Failures    []task.Failure
	Recovered   []string
	GeneratedAt time.Time
}

// WebhookNotifier sends run results to a generic webhook.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	poster   *httpPoster
}

// NewWebhookNotifier creates a webhook notifier with the provided template.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, tmpl string) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if tmpl == "" {
		tmpl = defaultWebhookTemplate
	}

	parsed, err := template.New("webhook").Funcs(template.FuncMap{
		"toJson": func(v any) (string, error) {
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		},
	}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}

	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		poster:   newHTTPPoster(logger, "webhook", webhookURL, "application/json", defaultTiming),
	}, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, site string, failures []task.Failure, recovered []string) error {
	if n == nil || (len(failures) == 0 && len(recovered) == 0) {
		return nil
	}

	siteName := site
	if siteName == "" {
		siteName = "default"
	}

	if err := n.poster.waitForRateLimit(ctx, siteName); err != nil {
		return err
	}

	payload := WebhookPayload{
		Site:        siteName,
		Failures:    failures,
		Recovered:   recovered,
		GeneratedAt: time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := n.template.Execute(&buf, payload); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}

	if err := n.poster.postWithRetry(ctx, buf.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().
		Str("site", siteName).
		Int("failures", len(failures)).
		Int("recovered", len(recovered)).
		Msg("webhook notification sent")

	return nil
}
