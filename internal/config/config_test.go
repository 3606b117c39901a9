package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DefaultConfig()
	if cfg.Probe.Concurrency != want.Probe.Concurrency {
		t.Errorf("probe.concurrency = %d, want %d", cfg.Probe.Concurrency, want.Probe.Concurrency)
	}
	if cfg.Screenshot.Timeout != "20s" {
		t.Errorf("screenshot.timeout = %q, want 20s", cfg.Screenshot.Timeout)
	}
	if strings.Join(cfg.Enumeration.Sources, ",") != "subfinder,assetfinder" {
		t.Errorf("enumeration.sources = %v", cfg.Enumeration.Sources)
	}
}

func TestLoadRequiredMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true); err == nil {
		t.Fatal("expected an error for a required config file that does not exist")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconsweep.yaml")
	content := `
output_dir: runs
probe:
  engine: httprobe
  concurrency: 5
enumeration:
  sources: [subfinder, tlsx]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OutputDir != "runs" {
		t.Errorf("output_dir = %q, want runs", cfg.OutputDir)
	}
	if cfg.Probe.Engine != "httprobe" || cfg.Probe.Concurrency != 5 {
		t.Errorf("probe = %+v", cfg.Probe)
	}
	// untouched keys keep their defaults
	if cfg.Probe.Timeout != "10s" {
		t.Errorf("probe.timeout = %q, want default 10s", cfg.Probe.Timeout)
	}
	if strings.Join(cfg.Enumeration.Sources, ",") != "subfinder,tlsx" {
		t.Errorf("enumeration.sources = %v", cfg.Enumeration.Sources)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RECONSWEEP_PROBE_CONCURRENCY", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Probe.Concurrency != 7 {
		t.Errorf("probe.concurrency = %d, want 7", cfg.Probe.Concurrency)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, "output_dir"},
		{"no sources", func(c *Config) { c.Enumeration.Sources = nil }, "at least one source"},
		{"unknown source", func(c *Config) { c.Enumeration.Sources = []string{"amass"} }, "amass"},
		{"unknown probe engine", func(c *Config) { c.Probe.Engine = "curl" }, "probe engine"},
		{"zero concurrency", func(c *Config) { c.Probe.Concurrency = 0 }, "probe.concurrency"},
		{"negative rate", func(c *Config) { c.Probe.RateLimit = -1 }, "rate_limit"},
		{"unknown screenshot engine", func(c *Config) { c.Screenshot.Engine = "eyewitness" }, "screenshot engine"},
		{"bad duration", func(c *Config) { c.Run.GracePeriod = "soon" }, "run.grace_period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestToolConfigHelpers(t *testing.T) {
	tc := ToolConfig{Timeout: "45s"}
	if got := tc.TimeoutDuration(time.Second); got != 45*time.Second {
		t.Errorf("TimeoutDuration = %v", got)
	}
	if got := (ToolConfig{Timeout: "nope"}).TimeoutDuration(time.Second); got != time.Second {
		t.Errorf("invalid timeout should fall back, got %v", got)
	}
	if got := (ToolConfig{}).Binary("whois"); got != "whois" {
		t.Errorf("Binary fallback = %q", got)
	}
	if got := (ToolConfig{Path: "/opt/whois"}).Binary("whois"); got != "/opt/whois" {
		t.Errorf("Binary = %q", got)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconsweep.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Probe.Engine != "native" || cfg.Screenshot.Engine != "gowitness" {
		t.Errorf("unexpected engines: %q %q", cfg.Probe.Engine, cfg.Screenshot.Engine)
	}
}
