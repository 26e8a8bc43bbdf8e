package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Site describes one monitored Qlik Sense site.
type Site struct {
	Name             string        `yaml:"name"`
	Server           string        `yaml:"server"`
	UserDirectory    string        `yaml:"user_directory"`
	UserID           string        `yaml:"user_id"`
	HistoryPath      string        `yaml:"history_path,omitempty"`
	LogArchivePath   string        `yaml:"log_archive_path,omitempty"`
	CustomProperty   string        `yaml:"custom_property,omitempty"`
	DefaultRecipient string        `yaml:"default_recipient,omitempty"`
	SkipTLSVerify    bool          `yaml:"skip_tls_verify,omitempty"`
	APITimeout       time.Duration `yaml:"api_timeout,omitempty"`
	APIMaxRetries    int           `yaml:"api_max_retries,omitempty"`
	APIRetryDelay    time.Duration `yaml:"api_retry_delay,omitempty"`
	APIDebug         bool          `yaml:"api_debug,omitempty"`
}

// EmailSettings carries SMTP delivery settings. Credentials come from
// the environment, never from the settings file.
type EmailSettings struct {
	SMTPServer    string `yaml:"smtp_server"`
	SMTPPort      int    `yaml:"smtp_port"`
	SenderEmail   string `yaml:"sender_email"`
	ReceiverEmail string `yaml:"receiver_email"`
}

// LoggingSettings controls log output.
type LoggingSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SettingsFile is the parsed YAML structure:
// sites: [{name, server, ...}], email: {...}, logging: {...}
type SettingsFile struct {
	Sites   []Site          `yaml:"sites"`
	Email   EmailSettings   `yaml:"email"`
	Logging LoggingSettings `yaml:"logging"`
}

// LoadSettingsFile parses the YAML settings file from the given path.
func LoadSettingsFile(path string) (SettingsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SettingsFile{}, fmt.Errorf("read settings file: %w", err)
	}

	var sf SettingsFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return SettingsFile{}, fmt.Errorf("parse settings file: %w", err)
	}

	if err := validateSites(sf.Sites); err != nil {
		return SettingsFile{}, err
	}

	for i := range sf.Sites {
		applySiteDefaults(&sf.Sites[i], sf.Email)
	}

	return sf, nil
}

// validateSites ensures all site entries are valid.
func validateSites(sites []Site) error {
	if len(sites) == 0 {
		return fmt.Errorf("settings file contains no sites")
	}

	seen := make(map[string]bool)

	for i, s := range sites {
		if s.Name == "" {
			return fmt.Errorf("site %d: name is required", i)
		}

		if s.Server == "" {
			return fmt.Errorf("site %q: server is required", s.Name)
		}

		if seen[s.Name] {
			return fmt.Errorf("site %q: duplicate name", s.Name)
		}
		seen[s.Name] = true

		if s.APITimeout < 0 {
			return fmt.Errorf("site %q: api_timeout cannot be negative", s.Name)
		}
		if s.APIRetryDelay < 0 {
			return fmt.Errorf("site %q: api_retry_delay cannot be negative", s.Name)
		}
	}

	return nil
}

func applySiteDefaults(s *Site, email EmailSettings) {
	if s.HistoryPath == "" {
		s.HistoryPath = s.Name + "_task_failures.csv"
	}
	if s.DefaultRecipient == "" {
		s.DefaultRecipient = email.ReceiverEmail
	}
}
