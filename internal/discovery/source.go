package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/tools"
)

// Source is one independent contributor of candidate subdomains
type Source interface {
	Name() string
	Enumerate(ctx context.Context, target models.Target) ([]string, error)
}

// EnumerateFunc runs an external enumerator against a bare domain
type EnumerateFunc func(ctx context.Context, domain string) ([]string, error)

// ToolSource adapts an external tool to Source, bounding every call by its
// own timeout.
type ToolSource struct {
	name    string
	timeout time.Duration
	run     EnumerateFunc
}

// NewToolSource wraps fn as a Source named name
func NewToolSource(name string, timeout time.Duration, fn EnumerateFunc) *ToolSource {
	return &ToolSource{name: name, timeout: timeout, run: fn}
}

func (s *ToolSource) Name() string {
	return s.name
}

func (s *ToolSource) Enumerate(ctx context.Context, target models.Target) ([]string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.run(ctx, target.String())
}

// BuildSources returns the configured sources in the order they are listed
func BuildSources(cfg *config.Config) ([]Source, error) {
	var sources []Source
	for _, name := range cfg.Enumeration.Sources {
		src, err := buildSource(name, cfg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func buildSource(name string, cfg *config.Config) (Source, error) {
	tc := cfg.Tools
	switch name {
	case "subfinder":
		return NewToolSource(name, tc.Subfinder.TimeoutDuration(5*time.Minute), func(ctx context.Context, domain string) ([]string, error) {
			return tools.RunSubfinder(ctx, domain, cfg.Enumeration.SubfinderThreads, tc.Subfinder.Binary(name), tc.Subfinder.Args)
		}), nil
	case "assetfinder":
		return NewToolSource(name, tc.Assetfinder.TimeoutDuration(5*time.Minute), func(ctx context.Context, domain string) ([]string, error) {
			return tools.RunAssetfinder(ctx, domain, tc.Assetfinder.Binary(name), tc.Assetfinder.Args)
		}), nil
	case "tlsx":
		return NewToolSource(name, tc.Tlsx.TimeoutDuration(2*time.Minute), func(ctx context.Context, domain string) ([]string, error) {
			return tools.RunTlsx(ctx, domain, tc.Tlsx.Binary(name), tc.Tlsx.Args)
		}), nil
	default:
		return nil, fmt.Errorf("unknown enumeration source %q", name)
	}
}
