package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mgjeon/heliodata/internal/expect"
	"github.com/mgjeon/heliodata/internal/timegrid"
)

// Config defines configuration for the heliodata CLI.
type Config struct {
	// Root is the data root: a directory path or a blob bucket URL
	// (file://, s3://, gs://, mem://).
	Root string `yaml:"root"`

	// Start and End bound the reconciliation window, half-open [Start, End).
	Start time.Time `yaml:"-"`
	End   time.Time `yaml:"-"`

	// Granularity of the time grid: "year", "month", or a duration.
	Granularity string `yaml:"granularity"`

	// Cadence is the sampling step requested from the archive within an
	// interval. Zero means the archive default.
	Cadence time.Duration `yaml:"-"`

	// Dimension values per axis. Which axes a mission uses is decided by
	// its subcommand.
	Wavelengths []string `yaml:"wavelengths"`
	Segments    []string `yaml:"segments"`
	Products    []string `yaml:"products"`
	Sources     []string `yaml:"sources"`

	// SkipStatuses lists cell statuses treated as terminal, usually
	// "no_data".
	SkipStatuses []string `yaml:"skip_statuses"`

	// Notify is the registered JSOC export email.
	Notify string `yaml:"notify"`

	Workers        int           `yaml:"workers"`
	FailureBackoff time.Duration `yaml:"-"`

	// ValidateFITS checks fetched artifacts for a FITS primary header.
	ValidateFITS bool `yaml:"validate_fits"`

	// Checksum logs a SHA-256 digest per fetched artifact.
	Checksum bool `yaml:"checksum"`

	// Backup copies an existing expectation table aside before the run's
	// first rewrite.
	Backup bool `yaml:"backup"`

	Progress bool `yaml:"progress"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig defines HTTP retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Granularity:    "month",
		Workers:        4,
		FailureBackoff: 2 * time.Second,
		ValidateFITS:   true,
		Backup:         true,
		Retry: RetryConfig{
			Attempts:   3,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string times and durations.
type yamlConfig struct {
	Root           string          `yaml:"root"`
	Start          string          `yaml:"start"`
	End            string          `yaml:"end"`
	Granularity    string          `yaml:"granularity"`
	Cadence        string          `yaml:"cadence"`
	Wavelengths    []string        `yaml:"wavelengths"`
	Segments       []string        `yaml:"segments"`
	Products       []string        `yaml:"products"`
	Sources        []string        `yaml:"sources"`
	SkipStatuses   []string        `yaml:"skip_statuses"`
	Notify         string          `yaml:"notify"`
	Workers        int             `yaml:"workers"`
	FailureBackoff string          `yaml:"failure_backoff"`
	ValidateFITS   *bool           `yaml:"validate_fits"`
	Checksum       bool            `yaml:"checksum"`
	Backup         *bool           `yaml:"backup"`
	Progress       bool            `yaml:"progress"`
	Retry          yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// ParseTime parses a config timestamp: a date ("2015-01-01") or RFC 3339.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want 2006-01-02 or RFC 3339)", s)
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Root != "" {
		cfg.Root = yc.Root
	}
	if yc.Start != "" {
		t, err := ParseTime(yc.Start)
		if err != nil {
			return Config{}, fmt.Errorf("parse start: %w", err)
		}
		cfg.Start = t
	}
	if yc.End != "" {
		t, err := ParseTime(yc.End)
		if err != nil {
			return Config{}, fmt.Errorf("parse end: %w", err)
		}
		cfg.End = t
	}
	if yc.Granularity != "" {
		cfg.Granularity = yc.Granularity
	}
	if yc.Cadence != "" {
		d, err := time.ParseDuration(yc.Cadence)
		if err != nil {
			return Config{}, fmt.Errorf("parse cadence: %w", err)
		}
		cfg.Cadence = d
	}
	if len(yc.Wavelengths) > 0 {
		cfg.Wavelengths = yc.Wavelengths
	}
	if len(yc.Segments) > 0 {
		cfg.Segments = yc.Segments
	}
	if len(yc.Products) > 0 {
		cfg.Products = yc.Products
	}
	if len(yc.Sources) > 0 {
		cfg.Sources = yc.Sources
	}
	if len(yc.SkipStatuses) > 0 {
		cfg.SkipStatuses = yc.SkipStatuses
	}
	if yc.Notify != "" {
		cfg.Notify = yc.Notify
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.FailureBackoff != "" {
		d, err := time.ParseDuration(yc.FailureBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse failure_backoff: %w", err)
		}
		cfg.FailureBackoff = d
	}
	if yc.ValidateFITS != nil {
		cfg.ValidateFITS = *yc.ValidateFITS
	}
	cfg.Checksum = yc.Checksum
	if yc.Backup != nil {
		cfg.Backup = *yc.Backup
	}
	cfg.Progress = yc.Progress
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the HELIODATA_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("HELIODATA_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("HELIODATA_START"); v != "" {
		t, err := ParseTime(v)
		if err != nil {
			return fmt.Errorf("parse HELIODATA_START: %w", err)
		}
		c.Start = t
	}
	if v := os.Getenv("HELIODATA_END"); v != "" {
		t, err := ParseTime(v)
		if err != nil {
			return fmt.Errorf("parse HELIODATA_END: %w", err)
		}
		c.End = t
	}
	if v := os.Getenv("HELIODATA_GRANULARITY"); v != "" {
		c.Granularity = v
	}
	if v := os.Getenv("HELIODATA_CADENCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HELIODATA_CADENCE: %w", err)
		}
		c.Cadence = d
	}
	if v := os.Getenv("HELIODATA_NOTIFY"); v != "" {
		c.Notify = v
	}
	if v := os.Getenv("HELIODATA_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HELIODATA_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("HELIODATA_SKIP_STATUSES"); v != "" {
		c.SkipStatuses = splitList(v)
	}
	if v := os.Getenv("HELIODATA_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HELIODATA_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("HELIODATA_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HELIODATA_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("HELIODATA_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HELIODATA_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration before any remote call is made.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("config: root is required")
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return errors.New("config: start and end are required")
	}
	if !c.Start.Before(c.End) {
		return errors.New("config: start must be before end")
	}
	if _, err := timegrid.Parse(c.Granularity); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	for _, s := range c.SkipStatuses {
		if _, err := expect.ParseStatus(s); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// Skip returns the parsed skip statuses. Call Validate first.
func (c *Config) Skip() []expect.Status {
	statuses := make([]expect.Status, 0, len(c.SkipStatuses))
	for _, s := range c.SkipStatuses {
		if st, err := expect.ParseStatus(s); err == nil {
			statuses = append(statuses, st)
		}
	}
	return statuses
}

// Grid parses the granularity and generates the time grid. Call Validate
// first.
func (c *Config) Grid() ([]timegrid.Interval, timegrid.Granularity, error) {
	g, err := timegrid.Parse(c.Granularity)
	if err != nil {
		return nil, timegrid.Granularity{}, err
	}
	grid, err := timegrid.Generate(c.Start, c.End, g)
	if err != nil {
		return nil, timegrid.Granularity{}, err
	}
	return grid, g, nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Root != "" {
		c.Root = override.Root
	}
	if !override.Start.IsZero() {
		c.Start = override.Start
	}
	if !override.End.IsZero() {
		c.End = override.End
	}
	if override.Granularity != "" {
		c.Granularity = override.Granularity
	}
	if override.Cadence != 0 {
		c.Cadence = override.Cadence
	}
	if len(override.Wavelengths) > 0 {
		c.Wavelengths = override.Wavelengths
	}
	if len(override.Segments) > 0 {
		c.Segments = override.Segments
	}
	if len(override.Products) > 0 {
		c.Products = override.Products
	}
	if len(override.Sources) > 0 {
		c.Sources = override.Sources
	}
	if len(override.SkipStatuses) > 0 {
		c.SkipStatuses = override.SkipStatuses
	}
	if override.Notify != "" {
		c.Notify = override.Notify
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.FailureBackoff != 0 {
		c.FailureBackoff = override.FailureBackoff
	}
	if override.Checksum {
		c.Checksum = override.Checksum
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}

// splitList splits a comma-separated environment value.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
