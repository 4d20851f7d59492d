package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "MPV_CONFIG"
	catalogURLEnv   = "MPV_CATALOG_URL"
	statsURLEnv     = "MPV_STATS_URL"
	archiveDSNEnv   = "MPV_ARCHIVE_DSN"
	logLevelEnv     = "MPV_LOG_LEVEL"

	DefaultCatalogURL = "http://xfinitytv.comcast.net/movie.widget"
	DefaultStatsURL   = "http://stats.grok.se/json/en/201408/"
)

// Output formats understood by the report sinks.
const (
	FormatJSON  = "json"
	FormatTable = "table"
	FormatAuto  = "auto"
)

// Config holds high-level settings required across the application.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog" toml:"catalog"`
	Stats     StatsConfig     `yaml:"stats" toml:"stats"`
	Pipeline  PipelineConfig  `yaml:"pipeline" toml:"pipeline"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
	Archive   ArchiveConfig   `yaml:"archive" toml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Scheduler SchedulerConfig `yaml:"scheduler" toml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// CatalogConfig points at the document listing the movies to rank.
type CatalogConfig struct {
	URL     string            `yaml:"url" toml:"url"`
	Scanner string            `yaml:"scanner" toml:"scanner"`
	Options map[string]string `yaml:"options" toml:"options"`
}

// StatsConfig describes the page view source; lookup keys are appended to BaseURL.
type StatsConfig struct {
	BaseURL   string   `yaml:"baseUrl" toml:"base_url"`
	Timeout   Duration `yaml:"timeout" toml:"timeout"`
	UserAgent string   `yaml:"userAgent" toml:"user_agent"`
}

// PipelineConfig sizes the worker pool and caps the report.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
	Limit       int `yaml:"limit" toml:"limit"`
}

// OutputConfig selects where and how the report is written. Path "-" is stdout.
type OutputConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Format string `yaml:"format" toml:"format"`
}

// ArchiveConfig enables the report archive when DSN is set.
type ArchiveConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// TelemetryConfig points at a node-exporter textfile; empty disables it.
type TelemetryConfig struct {
	TextfilePath string `yaml:"textfilePath" toml:"textfile_path"`
}

// SchedulerConfig repeats runs every Interval; zero means run once.
type SchedulerConfig struct {
	Interval Duration       `yaml:"interval" toml:"interval"`
	Timezone string         `yaml:"timezone" toml:"timezone"`
	location *time.Location `yaml:"-" toml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Duration reads "10s"-style strings from YAML and TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load applies defaults, then the config file (explicit path or MPV_CONFIG), then
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Finalize binds derived values and validates; call it again after mutating a loaded Config.
func (c *Config) Finalize() error {
	if err := c.bindTimezone(); err != nil {
		return err
	}
	return c.Validate()
}

func mergeFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(raw, cfg)
	default:
		err = yaml.Unmarshal(raw, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(catalogURLEnv); v != "" {
		c.Catalog.URL = v
	}

	if v := os.Getenv(statsURLEnv); v != "" {
		c.Stats.BaseURL = v
	}

	if v := os.Getenv(archiveDSNEnv); v != "" {
		c.Archive.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: unknown timezone %s: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if err := validateHTTPURL("catalog.url", c.Catalog.URL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Catalog.Scanner) == "" {
		return fmt.Errorf("config: catalog.scanner is required")
	}
	if err := validateHTTPURL("stats.baseUrl", c.Stats.BaseURL); err != nil {
		return err
	}
	if c.Stats.Timeout.Duration <= 0 {
		return fmt.Errorf("config: stats.timeout must be positive, got %s", c.Stats.Timeout)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("config: pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Pipeline.Limit < 0 {
		return fmt.Errorf("config: pipeline.limit must not be negative, got %d", c.Pipeline.Limit)
	}

	switch c.Output.Format {
	case FormatJSON, FormatTable, FormatAuto:
	default:
		return fmt.Errorf("config: unknown output.format %q", c.Output.Format)
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("config: output.path is required (use - for stdout)")
	}

	if c.Archive.DSN != "" {
		switch c.Archive.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("config: unknown archive.driver %q", c.Archive.Driver)
		}
	}

	if c.Scheduler.Interval.Duration < 0 {
		return fmt.Errorf("config: scheduler.interval must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}

	return nil
}

func validateHTTPURL(field, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", field, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("config: %s must be an absolute http(s) url, got %q", field, raw)
	}
	return nil
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Catalog: CatalogConfig{URL: DefaultCatalogURL, Scanner: "widget"},
		Stats: StatsConfig{
			BaseURL:   DefaultStatsURL,
			Timeout:   Duration{10 * time.Second},
			UserAgent: "MoviePageViews/1.0",
		},
		Pipeline:  PipelineConfig{Concurrency: runtime.NumCPU() * 4},
		Output:    OutputConfig{Path: "-", Format: FormatJSON},
		Archive:   ArchiveConfig{Driver: "sqlite"},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, location: tz},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}
