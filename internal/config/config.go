// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and WHODLE_ env vars over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleLayout is the accepted format of ScheduleTime.
const ScheduleLayout = "15:04"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// ScheduleTime is the HH:mm wall-clock time of the daily selection in TimeZone.
	ScheduleTime string `koanf:"schedule_time"`

	// TimeZone is the IANA name used to read ScheduleTime.
	TimeZone string `koanf:"time_zone"`

	// PollIntervalSeconds is the scheduler tick period.
	PollIntervalSeconds int `koanf:"poll_interval_seconds"`

	// TZBackoffSeconds is how long the scheduler waits after the time zone fails to load.
	TZBackoffSeconds int `koanf:"tz_backoff_seconds"`

	// RNGSeed seeds the selection source; 0 seeds from crypto/rand.
	RNGSeed uint64 `koanf:"rng_seed"`

	// KafkaBrokers is a comma-separated broker list; empty disables publishing.
	KafkaBrokers string `koanf:"kafka_brokers"`

	// KafkaTopic receives selection-completed events.
	KafkaTopic string `koanf:"kafka_topic"`

	// RedocFile is a local ReDoc bundle served on /api-docs; empty uses the CDN.
	RedocFile string `koanf:"redoc_file"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBPath:              "data/whodle.db",
		ScheduleTime:        "00:05",
		TimeZone:            "UTC",
		PollIntervalSeconds: 120,
		TZBackoffSeconds:    3600,
		KafkaTopic:          "whodle.daily-selection",
	}
}

// Validate checks the fields the process cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	if _, _, err := c.ScheduleClock(); err != nil {
		return err
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: poll_interval_seconds must be positive", ErrInvalidConfig)
	}
	if c.TZBackoffSeconds <= 0 {
		return fmt.Errorf("%w: tz_backoff_seconds must be positive", ErrInvalidConfig)
	}
	if len(c.Brokers()) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		return fmt.Errorf("%w: kafka_topic must be set when kafka_brokers is", ErrInvalidConfig)
	}
	return nil
}

// ScheduleClock returns the hour and minute of ScheduleTime.
func (c *Config) ScheduleClock() (hour, minute int, err error) {
	t, err := time.Parse(ScheduleLayout, strings.TrimSpace(c.ScheduleTime))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: schedule_time %q is not HH:mm", ErrInvalidConfig, c.ScheduleTime)
	}
	return t.Hour(), t.Minute(), nil
}

// PollInterval returns the scheduler tick period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// TZBackoff returns the wait applied after a time zone failure.
func (c *Config) TZBackoff() time.Duration {
	return time.Duration(c.TZBackoffSeconds) * time.Second
}

// Brokers splits KafkaBrokers, dropping blanks.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
