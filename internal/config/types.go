package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Reminder ReminderConfig `json:"reminder"`
	Google   GoogleConfig   `json:"google,omitempty"`
	Voice    VoiceConfig    `json:"voice,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the task/user store backend.
//
// Driver values:
//   - "sqlite": SQLite database file at Path
//   - "postgres": PostgreSQL reachable via DSN
type StorageConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"`
	DSN    string `json:"dsn,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// ReminderConfig controls the reminder poll loop.
type ReminderConfig struct {
	Enabled bool `json:"enabled"`
	// Interval is a Go duration string between polls. Default "60s".
	Interval string `json:"interval,omitempty"`
}

// GoogleConfig carries the OAuth client used for calendar authorization.
// Leave empty to run without calendar sync.
type GoogleConfig struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

// VoiceConfig configures voice-message transcription.
// Leave the key empty to disable voice intake.
type VoiceConfig struct {
	AssemblyAIKey string `json:"assemblyai_key,omitempty"`
	// TempDir is where downloaded voice files are staged. Default os.TempDir().
	TempDir string `json:"temp_dir,omitempty"`
}

const DefaultReminderInterval = 60 * time.Second

// ApplyDefaults fills zero values in place.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if !c.Logging.Console && !c.Logging.File.Enabled {
		c.Logging.Console = true
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "sqlite"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = "./assistant.db"
	}
	if strings.TrimSpace(c.Reminder.Interval) == "" {
		c.Reminder.Interval = "60s"
	}
}

// Validate checks the config for fatal mistakes. It does not mutate.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if _, err := DurationField("telegram.poll_timeout", c.Telegram.PollTimeout, 0); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "sqlite", "sqlite3":
		// path default applies
	case "postgres", "postgresql":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if _, err := DurationField("storage.busy_timeout", c.Storage.BusyTimeout, 0); err != nil {
		return err
	}
	if _, err := DurationField("reminder.interval", c.Reminder.Interval, 0); err != nil {
		return err
	}
	// Google is optional, but partial configuration is almost always a typo.
	g := c.Google
	set := 0
	for _, v := range []string{g.ClientID, g.ClientSecret, g.RedirectURI} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return errors.New("google: client_id, client_secret and redirect_uri must be set together")
	}
	return nil
}

// ReminderInterval returns the parsed poll interval with the default applied.
func (c *Config) ReminderInterval() time.Duration {
	d, err := DurationField("reminder.interval", c.Reminder.Interval, DefaultReminderInterval)
	if err != nil {
		return DefaultReminderInterval
	}
	return d
}

// DurationField parses a config duration string such as "10s" or "2m".
// Empty and zero values fall back to def; negative values are an error.
func DurationField(field, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: cannot parse %q as duration: %w", field, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	case d == 0:
		return def, nil
	}
	return d, nil
}
