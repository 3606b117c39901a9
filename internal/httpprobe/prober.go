// Package httpprobe decides which discovered hosts answer over HTTP(S).
package httpprobe

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/models"
)

// Prober checks a batch of hosts. Implementations may return results in any
// order, with duplicates or for hosts outside the batch; Reconcile cleans
// that up.
type Prober interface {
	Probe(ctx context.Context, hosts []string) ([]models.LivenessResult, error)
}

// noResponse is recorded for candidates an engine said nothing about
const noResponse = "no response"

// NewProber builds the engine selected by probe.engine
func NewProber(cfg *config.Config, logger *logrus.Entry, onResult func(models.LivenessResult)) (Prober, error) {
	timeout := config.Duration(cfg.Probe.Timeout, 10*time.Second)
	grace := config.Duration(cfg.Run.GracePeriod, 10*time.Second)

	switch cfg.Probe.Engine {
	case "native":
		return NewNativeProber(NativeOptions{
			Concurrency: cfg.Probe.Concurrency,
			Timeout:     timeout,
			RateLimit:   cfg.Probe.RateLimit,
			Insecure:    cfg.Probe.Insecure,
			Grace:       grace,
			Logger:      logger,
			OnResult:    onResult,
		}), nil
	case "httprobe":
		return &HttprobeProber{
			Binary:      cfg.Tools.Httprobe.Binary("httprobe"),
			Args:        cfg.Tools.Httprobe.Args,
			Concurrency: cfg.Probe.Concurrency,
			Timeout:     timeout,
			RunTimeout:  cfg.Tools.Httprobe.TimeoutDuration(30 * time.Minute),
		}, nil
	case "httpx":
		return &HttpxProber{
			Binary:     cfg.Tools.Httpx.Binary("httpx"),
			Args:       cfg.Tools.Httpx.Args,
			Threads:    cfg.Probe.Concurrency,
			Timeout:    timeout,
			RunTimeout: cfg.Tools.Httpx.TimeoutDuration(30 * time.Minute),
		}, nil
	default:
		return nil, fmt.Errorf("unknown probe engine %q", cfg.Probe.Engine)
	}
}

// Reconcile returns exactly one result per candidate, sorted by host.
// Results for hosts that are not candidates are dropped. When a host has
// several results, a live one wins over a dead one and HTTPS wins over HTTP.
func Reconcile(candidates []string, results []models.LivenessResult) []models.LivenessResult {
	best := make(map[string]models.LivenessResult, len(candidates))
	for _, c := range candidates {
		best[strings.ToLower(c)] = models.LivenessResult{Host: strings.ToLower(c), Error: noResponse}
	}

	for _, r := range results {
		host := resultHost(r, best)
		current, ok := best[host]
		if !ok {
			continue
		}
		r.Host = host
		if better(r, current) {
			best[host] = r
		}
	}

	out := make([]models.LivenessResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b models.LivenessResult) int { return strings.Compare(a.Host, b.Host) })
	return out
}

// Alive filters results down to live hosts, preserving order
func Alive(results []models.LivenessResult) []models.LivenessResult {
	var alive []models.LivenessResult
	for _, r := range results {
		if r.Alive {
			alive = append(alive, r)
		}
	}
	return alive
}

func better(candidate, current models.LivenessResult) bool {
	if candidate.Alive != current.Alive {
		return candidate.Alive
	}
	if !candidate.Alive {
		// keep the first concrete error over the placeholder
		return current.Error == noResponse && candidate.Error != ""
	}
	return candidate.Scheme.Rank() > current.Scheme.Rank()
}

// resultHost maps a result back onto a candidate key, falling back to the
// URL's host (with and without port) when Host is empty or unknown.
func resultHost(r models.LivenessResult, known map[string]models.LivenessResult) string {
	host := strings.ToLower(strings.TrimSuffix(r.Host, "."))
	if _, ok := known[host]; ok {
		return host
	}
	raw := r.URL
	if raw == "" {
		raw = r.Host
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return host
	}
	if h := strings.ToLower(u.Host); h != "" {
		if _, ok := known[h]; ok {
			return h
		}
	}
	return strings.ToLower(u.Hostname())
}

// schemeOf returns the scheme of a probe URL
func schemeOf(raw string) models.Scheme {
	switch {
	case strings.HasPrefix(strings.ToLower(raw), "https://"):
		return models.SchemeHTTPS
	case strings.HasPrefix(strings.ToLower(raw), "http://"):
		return models.SchemeHTTP
	default:
		return ""
	}
}
