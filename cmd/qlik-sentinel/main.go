package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nholik/qlik-sentinel/internal/config"
	"github.com/nholik/qlik-sentinel/internal/coordinator"
	"github.com/nholik/qlik-sentinel/internal/healthcheck"
	"github.com/nholik/qlik-sentinel/internal/logging"
	"github.com/nholik/qlik-sentinel/internal/metrics"
	"github.com/nholik/qlik-sentinel/internal/notify"
	"github.com/nholik/qlik-sentinel/internal/server"
	"github.com/rs/zerolog"
)

func main() {
	bootLogger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	settings, err := config.LoadSettingsFile(cfg.ConfigFile)
	if err != nil {
		bootLogger.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("failed to load settings file")
	}

	logger := logging.NewWithSettings(settings.Logging.Level, settings.Logging.File)
	logger.Info().
		Int("sites", len(settings.Sites)).
		Dur("poll_interval", cfg.PollInterval).
		Dur("reminder_every", cfg.ReminderEvery).
		Bool("dry_run", cfg.DryRun).
		Msg("qlik-sentinel starting")

	notifier, err := buildNotifier(logger, cfg, settings)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build notifiers")
	}

	collectors := metrics.New()
	tracker := healthcheck.NewTracker()

	coord, err := coordinator.New(logger, cfg, settings.Sites, notifier, collectors, tracker)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build site engines")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PollInterval == 0 {
		// One-shot: external scheduling owns the cadence. A failed
		// fetch exits non-zero so the scheduler can see it.
		if err := coord.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("run failed")
			os.Exit(1)
		}
		logger.Info().Msg("qlik-sentinel finished")
		return
	}

	server.Start(ctx, logger, cfg.PollInterval, tracker, collectors, cfg.HealthPort, cfg.MetricsPort)

	if err := coord.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("coordinator failed")
	}
	logger.Info().Msg("qlik-sentinel stopped")
}

func buildNotifier(logger zerolog.Logger, cfg config.Config, settings config.SettingsFile) (notify.Notifier, error) {
	email, err := notify.NewEmailNotifier(logger, notify.EmailConfig{
		Host:     settings.Email.SMTPServer,
		Port:     settings.Email.SMTPPort,
		Sender:   settings.Email.SenderEmail,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		return nil, err
	}

	slack := notify.NewSlackNotifier(logger, cfg.SlackWebhookURL)

	webhook, err := notify.NewWebhookNotifier(logger, cfg.WebhookURL, cfg.WebhookTemplate)
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier
	if webhook != nil {
		notifier = notify.NewMultiNotifier(email, slack, webhook)
	} else {
		notifier = notify.NewMultiNotifier(email, slack)
	}

	if cfg.DryRun {
		return notify.NewDryRunNotifier(logger, notifier), nil
	}
	return notifier, nil
}
