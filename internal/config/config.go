package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envConfigFile      = "QS_CONFIG_FILE"
	envPollInterval    = "QS_POLL_INTERVAL"
	envReminderHours   = "QS_REMINDER_HOURS"
	envSMTPUsername    = "QS_SMTP_USERNAME"
	envSMTPPassword    = "QS_SMTP_PASSWORD"
	envSlackWebhookURL = "QS_SLACK_WEBHOOK_URL"
	envWebhookURL      = "QS_WEBHOOK_URL"
	envWebhookTemplate = "QS_WEBHOOK_TEMPLATE"
	envDryRun          = "QS_DRY_RUN"
	envHealthPort      = "QS_HEALTH_PORT"
	envMetricsPort     = "QS_METRICS_PORT"
)

const (
	defaultConfigFile    = "config.yaml"
	defaultReminderEvery = 24 * time.Hour
)

// Config describes runtime configuration loaded from the environment.
// Site definitions and delivery settings live in the YAML settings
// file; the environment carries secrets and scheduling knobs.
type Config struct {
	ConfigFile string

	// PollInterval drives the internal loop. Zero means one-shot: run a
	// single cycle and exit, leaving scheduling to cron or the task
	// scheduler.
	PollInterval time.Duration

	// ReminderEvery is the minimum gap between repeated notifications
	// for the same failure occurrence. Zero re-alerts on every poll.
	ReminderEvery time.Duration

	SMTPUsername    string
	SMTPPassword    string
	SlackWebhookURL string
	WebhookURL      string
	WebhookTemplate string
	DryRun          bool
	HealthPort      int
	MetricsPort     int
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ConfigFile:    defaultConfigFile,
		ReminderEvery: defaultReminderEvery,
	}

	if value, ok := lookupTrimmed(envConfigFile); ok {
		cfg.ConfigFile = value
	}

	if value, ok := lookupTrimmed(envPollInterval); ok {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envPollInterval, err)
		}
		if interval < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", envPollInterval)
		}
		cfg.PollInterval = interval
	}

	if value, ok := lookupTrimmed(envReminderHours); ok {
		hours, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envReminderHours, err)
		}
		if hours < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", envReminderHours)
		}
		cfg.ReminderEvery = time.Duration(hours) * time.Hour
	}

	if value, ok := lookupTrimmed(envSMTPUsername); ok {
		cfg.SMTPUsername = value
	}
	if value, ok := lookupTrimmed(envSMTPPassword); ok {
		cfg.SMTPPassword = value
	}
	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}
	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}
	if value, ok := lookupTrimmed(envWebhookTemplate); ok {
		cfg.WebhookTemplate = value
	}

	if value, ok := lookupTrimmed(envDryRun); ok {
		dryRun, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envDryRun, err)
		}
		cfg.DryRun = dryRun
	}

	var err error
	if cfg.HealthPort, err = lookupPort(envHealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = lookupPort(envMetricsPort); err != nil {
		return Config{}, err
	}

	if cfg.ConfigFile == "" {
		return Config{}, errors.New("QS_CONFIG_FILE must not be empty")
	}

	return cfg, nil
}

func lookupPort(key string) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be a valid port", key)
	}
	return port, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}
