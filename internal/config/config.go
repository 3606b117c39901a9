package config

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	OutputDir   string            `mapstructure:"output_dir" yaml:"output_dir"`
	DBPath      string            `mapstructure:"db_path" yaml:"db_path"`
	LogLevel    string            `mapstructure:"log_level" yaml:"log_level"`
	Tools       ToolsConfig       `mapstructure:"tools" yaml:"tools"`
	Enumeration EnumerationConfig `mapstructure:"enumeration" yaml:"enumeration"`
	Probe       ProbeConfig       `mapstructure:"probe" yaml:"probe"`
	Screenshot  ScreenshotConfig  `mapstructure:"screenshot" yaml:"screenshot"`
	Run         RunConfig         `mapstructure:"run" yaml:"run"`
	Notify      NotifyConfig      `mapstructure:"notify" yaml:"notify"`
	Scope       ScopeConfig       `mapstructure:"scope" yaml:"scope"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// ToolConfig represents configuration for a single tool
type ToolConfig struct {
	Path    string   `mapstructure:"path" yaml:"path"`
	Args    []string `mapstructure:"args" yaml:"args"`
	Timeout string   `mapstructure:"timeout" yaml:"timeout"`
}

// Binary returns the configured executable, falling back to name
func (t ToolConfig) Binary(name string) string {
	if t.Path != "" {
		return t.Path
	}
	return name
}

// TimeoutDuration parses Timeout; an empty or invalid value yields fallback
func (t ToolConfig) TimeoutDuration(fallback time.Duration) time.Duration {
	if t.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(t.Timeout)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ToolsConfig contains configuration for all external tools
type ToolsConfig struct {
	Whois       ToolConfig `mapstructure:"whois" yaml:"whois"`
	Subfinder   ToolConfig `mapstructure:"subfinder" yaml:"subfinder"`
	Assetfinder ToolConfig `mapstructure:"assetfinder" yaml:"assetfinder"`
	Tlsx        ToolConfig `mapstructure:"tlsx" yaml:"tlsx"`
	Httprobe    ToolConfig `mapstructure:"httprobe" yaml:"httprobe"`
	Httpx       ToolConfig `mapstructure:"httpx" yaml:"httpx"`
	Gowitness   ToolConfig `mapstructure:"gowitness" yaml:"gowitness"`
}

// EnumerationConfig selects which subdomain sources run
type EnumerationConfig struct {
	Sources          []string `mapstructure:"sources" yaml:"sources"`
	SubfinderThreads int      `mapstructure:"subfinder_threads" yaml:"subfinder_threads"`
}

// ProbeConfig controls the liveness prober
type ProbeConfig struct {
	Engine      string  `mapstructure:"engine" yaml:"engine"`
	Concurrency int     `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout     string  `mapstructure:"timeout" yaml:"timeout"`
	RateLimit   float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	Resolver    string  `mapstructure:"resolver" yaml:"resolver"`
}

// ScreenshotConfig controls the screenshot capturer
type ScreenshotConfig struct {
	Engine      string `mapstructure:"engine" yaml:"engine"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout     string `mapstructure:"timeout" yaml:"timeout"`
	ChromePath  string `mapstructure:"chrome_path" yaml:"chrome_path"`
}

// RunConfig bounds the whole pipeline
type RunConfig struct {
	Timeout       string `mapstructure:"timeout" yaml:"timeout"`
	GracePeriod   string `mapstructure:"grace_period" yaml:"grace_period"`
	ReportTimeout string `mapstructure:"report_timeout" yaml:"report_timeout"`
}

// NotifyConfig configures the completion webhook
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

// ScopeConfig restricts which targets may be scanned
type ScopeConfig struct {
	AllowedDomains  []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	ExcludedDomains []string `mapstructure:"excluded_domains" yaml:"excluded_domains"`
}

// MetricsConfig toggles the per-run Prometheus textfile
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

var (
	knownSources          = []string{"subfinder", "assetfinder", "tlsx"}
	knownProbeEngines     = []string{"native", "httprobe", "httpx"}
	knownScreenshotEngine = []string{"gowitness", "chromedp"}
)

// Load reads configuration from a YAML file layered over DefaultConfig.
// If path is empty, searches for reconsweep.yaml in the current directory,
// ./configs and ~/.config/reconsweep/. A missing file is not an error unless
// required is set. Environment variables prefixed RECONSWEEP_ override both.
func Load(path string, required bool) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}

	v.SetEnvPrefix("RECONSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reconsweep")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "reconsweep"))
		}
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if !missing || required {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir cannot be empty"))
	}

	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path cannot be empty"))
	}

	if len(c.Enumeration.Sources) == 0 {
		errs = append(errs, errors.New("enumeration.sources must list at least one source"))
	}
	for _, s := range c.Enumeration.Sources {
		if !slices.Contains(knownSources, s) {
			errs = append(errs, fmt.Errorf("unknown enumeration source %q (known: %s)", s, strings.Join(knownSources, ", ")))
		}
	}

	if !slices.Contains(knownProbeEngines, c.Probe.Engine) {
		errs = append(errs, fmt.Errorf("unknown probe engine %q (known: %s)", c.Probe.Engine, strings.Join(knownProbeEngines, ", ")))
	}

	if c.Probe.Concurrency <= 0 {
		errs = append(errs, errors.New("probe.concurrency must be positive"))
	}

	if c.Probe.RateLimit < 0 {
		errs = append(errs, errors.New("probe.rate_limit cannot be negative"))
	}

	if !slices.Contains(knownScreenshotEngine, c.Screenshot.Engine) {
		errs = append(errs, fmt.Errorf("unknown screenshot engine %q (known: %s)", c.Screenshot.Engine, strings.Join(knownScreenshotEngine, ", ")))
	}

	if c.Screenshot.Concurrency <= 0 {
		errs = append(errs, errors.New("screenshot.concurrency must be positive"))
	}

	durations := map[string]string{
		"probe.timeout":       c.Probe.Timeout,
		"screenshot.timeout":  c.Screenshot.Timeout,
		"run.timeout":         c.Run.Timeout,
		"run.grace_period":    c.Run.GracePeriod,
		"run.report_timeout":  c.Run.ReportTimeout,
		"tools.whois.timeout": c.Tools.Whois.Timeout,
	}
	for _, key := range slices.Sorted(maps.Keys(durations)) {
		if _, err := time.ParseDuration(durations[key]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Duration parses one of the validated duration strings, using fallback
// when it is empty or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	return ToolConfig{Timeout: s}.TimeoutDuration(fallback)
}
