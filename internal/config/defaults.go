package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		OutputDir: ".",
		DBPath:    "reconsweep.db",
		LogLevel:  "info",
		Tools: ToolsConfig{
			Whois: ToolConfig{
				Path:    "whois",
				Timeout: "30s",
			},
			Subfinder: ToolConfig{
				Path:    "subfinder",
				Args:    []string{},
				Timeout: "5m",
			},
			Assetfinder: ToolConfig{
				Path:    "assetfinder",
				Args:    []string{},
				Timeout: "5m",
			},
			Tlsx: ToolConfig{
				Path:    "tlsx",
				Args:    []string{},
				Timeout: "2m",
			},
			Httprobe: ToolConfig{
				Path:    "httprobe",
				Args:    []string{},
				Timeout: "30m",
			},
			Httpx: ToolConfig{
				Path:    "httpx",
				Args:    []string{},
				Timeout: "30m",
			},
			Gowitness: ToolConfig{
				Path:    "gowitness",
				Args:    []string{},
				Timeout: "20s",
			},
		},
		Enumeration: EnumerationConfig{
			Sources:          []string{"subfinder", "assetfinder"},
			SubfinderThreads: 10,
		},
		Probe: ProbeConfig{
			Engine:      "native",
			Concurrency: 50,
			Timeout:     "10s",
			RateLimit:   0,
			Insecure:    true,
			Resolver:    "1.1.1.1:53",
		},
		Screenshot: ScreenshotConfig{
			Engine:      "gowitness",
			Concurrency: 4,
			Timeout:     "20s",
		},
		Run: RunConfig{
			Timeout:       "2h",
			GracePeriod:   "10s",
			ReportTimeout: "30s",
		},
		Notify: NotifyConfig{},
		Scope: ScopeConfig{
			AllowedDomains:  []string{},
			ExcludedDomains: []string{},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// WriteDefault writes a default configuration to the specified path
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
