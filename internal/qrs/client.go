// Package qrs fetches failing reload tasks from the Qlik Sense
// repository service API.
package qrs

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nholik/qlik-sentinel/internal/task"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 5 * time.Second
	xrfKeyLength      = 16
	maxResponseBytes  = 64 << 20
)

// Config describes how to reach one Qlik Sense site. Transport
// authentication (certificates or a virtual proxy) is a deployment
// concern; the client identifies the service account through the
// X-Qlik-User header.
type Config struct {
	Server           string // host[:port] of the QRS endpoint
	UserDirectory    string
	UserID           string
	CustomProperty   string // custom property carrying alert recipients
	DefaultRecipient string
	LogArchivePath   string
	SkipTLSVerify    bool
	Timeout          time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	Debug            bool
}

// Client talks to the QRS API and implements the engine's task source.
type Client struct {
	logger zerolog.Logger
	cfg    Config
	http   *retryablehttp.Client
}

// NewClient constructs a QRS client for one site.
func NewClient(logger zerolog.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, errors.New("qrs server must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.CustomProperty == "" {
		cfg.CustomProperty = "CS_Tasks"
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = cfg.RetryDelay
	client.RetryWaitMax = cfg.RetryDelay * time.Duration(cfg.MaxRetries)
	client.Logger = nil
	transport := &http.Transport{}
	if cfg.SkipTLSVerify {
		// Qlik Sense sites routinely serve QRS with self-signed
		// certificates.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}

	return &Client{
		logger: logger,
		cfg:    cfg,
		http:   client,
	}, nil
}

// FailingTasks fetches all tasks and returns one Failure per
// (failing task, recipient) pair.
func (c *Client) FailingTasks(ctx context.Context) ([]task.Failure, error) {
	c.warmup(ctx)

	tasks, err := c.fetchTasks(ctx)
	if err != nil {
		return nil, err
	}

	failures := make([]task.Failure, 0)
	for _, t := range tasks {
		result := t.Operational.LastExecutionResult
		if _, failing := task.ErrorStatusCodes[result.Status]; !failing {
			c.logger.Debug().Str("task", t.Name).Int("status", result.Status).Msg("task skipped")
			continue
		}

		failedAt := parseQlikTime(result.StopTime)
		interval := executionInterval(result.StartTime, t.Operational.NextExecution)

		logFilePath := ""
		logURL := "N/A"
		if result.ScriptLogLocation != "" && c.cfg.LogArchivePath != "" {
			logFilePath = filepath.Join(c.cfg.LogArchivePath, filepath.FromSlash(result.ScriptLogLocation))
			logURL = "file://" + logFilePath
		}

		stream := "N/A"
		if t.App.Stream != nil && t.App.Stream.Name != "" {
			stream = t.App.Stream.Name
		}
		appName := t.App.Name
		if appName == "" {
			appName = "Unknown"
		}

		for _, recipient := range c.recipients(t) {
			failures = append(failures, task.Failure{
				ID:                t.ID,
				Name:              t.Name,
				AppName:           appName,
				Stream:            stream,
				Status:            task.StatusName(result.Status),
				FailedAt:          failedAt,
				ExecutionInterval: interval,
				LogURL:            logURL,
				LogFilePath:       logFilePath,
				Recipient:         recipient,
			})
		}
	}

	return failures, nil
}

// recipients reads alert recipients from the configured custom
// property, falling back to the site default.
func (c *Client) recipients(t qrsTask) []string {
	recipients := make([]string, 0, 1)
	for _, prop := range t.CustomProperties {
		if prop.Definition.Name == c.cfg.CustomProperty && prop.Value != "" {
			recipients = append(recipients, prop.Value)
		}
	}
	if len(recipients) == 0 && c.cfg.DefaultRecipient != "" {
		recipients = append(recipients, c.cfg.DefaultRecipient)
	}
	return recipients
}

func (c *Client) fetchTasks(ctx context.Context) ([]qrsTask, error) {
	body, err := c.get(ctx, "/qrs/task/full")
	if err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}

	var tasks []qrsTask
	if err := json.Unmarshal(body, &tasks); err != nil {
		return nil, fmt.Errorf("decode task response: %w", err)
	}

	c.logger.Info().Int("tasks", len(tasks)).Msg("fetched tasks from QRS")
	return tasks, nil
}

// warmup issues a GET /qrs/about so the site establishes the session
// before the heavier task query. Failures are logged, not fatal.
func (c *Client) warmup(ctx context.Context) {
	if _, err := c.get(ctx, "/qrs/about"); err != nil {
		c.logger.Warn().Err(err).Msg("qrs warmup request failed")
		return
	}
	c.logger.Debug().Msg("qrs warmup succeeded")
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	xrfkey := newXrfKey()

	endpoint := url.URL{
		Scheme:   "https",
		Host:     c.cfg.Server,
		Path:     path,
		RawQuery: url.Values{"Xrfkey": {xrfkey}}.Encode(),
	}
	if strings.HasPrefix(c.cfg.Server, "http://") || strings.HasPrefix(c.cfg.Server, "https://") {
		parsed, err := url.Parse(c.cfg.Server)
		if err != nil {
			return nil, fmt.Errorf("parse qrs server: %w", err)
		}
		endpoint.Scheme = parsed.Scheme
		endpoint.Host = parsed.Host
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build qrs request: %w", err)
	}
	req.Header.Set("X-Qlik-Xrfkey", xrfkey)
	req.Header.Set("X-Qlik-User", fmt.Sprintf("UserDirectory=%s; UserId=%s", c.cfg.UserDirectory, c.cfg.UserID))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "qlik-sentinel")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read qrs response: %w", err)
	}

	if c.cfg.Debug {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Int("bytes", len(body)).
			Str("path", path).
			Msg("qrs response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qrs %s: unexpected status %s", path, resp.Status)
	}
	return body, nil
}

const xrfKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newXrfKey returns a random 16-character key; QRS requires it in both
// the query string and the X-Qlik-Xrfkey header.
func newXrfKey() string {
	buf := make([]byte, xrfKeyLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = xrfKeyAlphabet[int(b)%len(xrfKeyAlphabet)]
	}
	return string(buf)
}
