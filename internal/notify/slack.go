package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nholik/qlik-sentinel/internal/task"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	slackMaxBlocks = 50
	// slackReservedBlocks accounts for the header block, context block,
	// and a possible recovered-tasks block in each message
	slackReservedBlocks = 3
	slackMaxFailures    = slackMaxBlocks - slackReservedBlocks
)

// SlackNotifier posts failure and recovery summaries to a Slack webhook.
type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; slack notifications disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, site string, failures []task.Failure, recovered []string) error {
	if len(failures) == 0 && len(recovered) == 0 {
		return nil
	}
	siteName := site
	if siteName == "" {
		siteName = "default"
	}
	if err := n.poster.waitForRateLimit(ctx, siteName); err != nil {
		return err
	}

	messages := buildSlackMessages(siteName, failures, recovered)
	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		if err := n.poster.postWithRetry(ctx, payload); err != nil {
			return err
		}
	}

	n.logger.Debug().
		Str("site", siteName).
		Int("failures", len(failures)).
		Int("recovered", len(recovered)).
		Int("messages", len(messages)).
		Msg("slack notification sent")

	return nil
}

func buildSlackMessages(site string, failures []task.Failure, recovered []string) []slack.WebhookMessage {
	if len(failures) == 0 && len(recovered) == 0 {
		return nil
	}
	if len(failures) <= slackMaxFailures {
		return []slack.WebhookMessage{buildSlackMessage(site, failures, recovered, len(failures), 1, 1)}
	}

	total := len(failures)
	chunkTotal := (total + slackMaxFailures - 1) / slackMaxFailures
	messages := make([]slack.WebhookMessage, 0, chunkTotal)

	for i := 0; i < total; i += slackMaxFailures {
		end := i + slackMaxFailures
		if end > total {
			end = total
		}
		partIndex := (i / slackMaxFailures) + 1
		// Recovered tasks ride along on the first chunk only.
		var chunkRecovered []string
		if partIndex == 1 {
			chunkRecovered = recovered
		}
		messages = append(messages, buildSlackMessage(site, failures[i:end], chunkRecovered, total, partIndex, chunkTotal))
	}
	return messages
}

func buildSlackMessage(site string, failures []task.Failure, recovered []string, total int, partIndex int, partTotal int) slack.WebhookMessage {
	summary := fmt.Sprintf("Qlik site %s: %d failed task(s)", site, total)
	if total == 0 {
		summary = fmt.Sprintf("Qlik site %s: %d recovered task(s)", site, len(recovered))
	}
	if partTotal > 1 {
		summary = fmt.Sprintf("%s (part %d/%d)", summary, partIndex, partTotal)
	}
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))
	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Site: *%s*", site), false, false),
	}
	if partTotal > 1 {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Batch: %d/%d", partIndex, partTotal), false, false))
	}
	contextBlock := slack.NewContextBlock("", contextElements...)

	blocks := []slack.Block{header, contextBlock}
	for _, f := range failures {
		blocks = append(blocks, buildFailureBlock(f))
	}
	if len(recovered) > 0 {
		blocks = append(blocks, buildRecoveredBlock(recovered))
	}

	blockSet := slack.Blocks{BlockSet: blocks}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func buildFailureBlock(f task.Failure) slack.Block {
	title := fmt.Sprintf("*%s*: `%s`", f.Name, f.Status)
	text := slack.NewTextBlockObject("mrkdwn", title, false, false)

	fields := make([]*slack.TextBlockObject, 0, 4)
	fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Failed:*\n%s", f.FailedAtLabel()), false, false))
	if f.AppName != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*App:*\n%s (%s)", f.AppName, f.Stream), false, false))
	}
	if f.LastFailure != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Previous failure:*\n%s", f.LastFailure), false, false))
	}
	if f.ExecutionInterval != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Interval:*\n%s", f.ExecutionInterval), false, false))
	}

	return slack.NewSectionBlock(text, fields, nil)
}

func buildRecoveredBlock(recovered []string) slack.Block {
	text := slack.NewTextBlockObject("mrkdwn", "*Recovered:*\n• "+strings.Join(recovered, "\n• "), false, false)
	return slack.NewSectionBlock(text, nil, nil)
}
