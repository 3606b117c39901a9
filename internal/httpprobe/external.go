package httpprobe

import (
	"context"
	"strings"
	"time"

	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/tools"
)

// HttprobeProber pipes the batch through tomnomnom/httprobe
type HttprobeProber struct {
	Binary      string
	Args        []string
	Concurrency int
	Timeout     time.Duration // per request
	RunTimeout  time.Duration // whole invocation
}

func (p *HttprobeProber) Probe(ctx context.Context, hosts []string) ([]models.LivenessResult, error) {
	ctx, cancel := withRunTimeout(ctx, p.RunTimeout)
	defer cancel()

	urls, err := tools.RunHttprobe(ctx, hosts, p.Concurrency, p.Timeout, p.Binary, p.Args)
	if err != nil {
		return nil, err
	}

	results := make([]models.LivenessResult, 0, len(urls))
	for _, u := range urls {
		results = append(results, models.LivenessResult{Alive: true, Scheme: schemeOf(u), URL: u})
	}
	return results, nil
}

// HttpxProber pipes the batch through projectdiscovery/httpx
type HttpxProber struct {
	Binary     string
	Args       []string
	Threads    int
	Timeout    time.Duration
	RunTimeout time.Duration
}

func (p *HttpxProber) Probe(ctx context.Context, hosts []string) ([]models.LivenessResult, error) {
	ctx, cancel := withRunTimeout(ctx, p.RunTimeout)
	defer cancel()

	raw, err := tools.RunHttpx(ctx, hosts, p.Threads, p.Timeout, p.Binary, p.Args)
	if err != nil {
		return nil, err
	}

	results := make([]models.LivenessResult, 0, len(raw))
	for _, r := range raw {
		scheme := models.Scheme(strings.ToLower(r.Scheme))
		if scheme == "" {
			scheme = schemeOf(r.URL)
		}
		results = append(results, models.LivenessResult{
			Host:       stripScheme(r.Input),
			Alive:      !r.Failed,
			Scheme:     scheme,
			URL:        r.URL,
			StatusCode: r.StatusCode,
		})
	}
	return results, nil
}

func withRunTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func stripScheme(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	return strings.TrimSuffix(s, "/")
}
