package httpprobe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

// RunOptions configures one probe stage
type RunOptions struct {
	Resolver        string // host:port used to tell a dead network from dead hosts; empty skips the check
	ResolverTimeout time.Duration
	Logger          *logrus.Entry
}

// Run probes hosts with p and reconciles the results against the input.
// When every host failed it checks the resolver, returning a
// *reconerr.ProbeEnvironmentError if the network itself looks down.
func Run(ctx context.Context, hosts []string, p Prober, opts RunOptions) ([]models.LivenessResult, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if len(hosts) == 0 {
		opts.Logger.Info("no hosts to probe")
		return []models.LivenessResult{}, nil
	}

	start := time.Now()
	raw, probeErr := p.Probe(ctx, hosts)
	results := Reconcile(hosts, raw)

	alive := Alive(results)
	opts.Logger.WithField("elapsed", time.Since(start).Round(time.Millisecond)).
		Infof("%d/%d hosts alive", len(alive), len(hosts))

	if probeErr != nil {
		return results, fmt.Errorf("probe failed: %w", probeErr)
	}

	if len(alive) == 0 && allFailed(results) && opts.Resolver != "" {
		timeout := opts.ResolverTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		if err := CheckResolver(ctx, opts.Resolver, timeout); err != nil {
			envErr := &reconerr.ProbeEnvironmentError{Err: err}
			opts.Logger.WithField("resolver", opts.Resolver).WithError(err).Error("every probe failed and the resolver is unreachable")
			return results, envErr
		}
		opts.Logger.WithField("resolver", opts.Resolver).Warn("no host answered; network looks healthy")
	}

	return results, nil
}

func allFailed(results []models.LivenessResult) bool {
	for _, r := range results {
		if r.Alive || r.Error == "" {
			return false
		}
	}
	return true
}

// WriteArtifacts writes alive.txt (bare hosts, sorted) and liveness.json
// (the live results with their scheme).
func WriteArtifacts(layout storage.RunLayout, results []models.LivenessResult) error {
	alive := Alive(results)
	if alive == nil {
		alive = []models.LivenessResult{}
	}
	hosts := make([]string, 0, len(alive))
	for _, r := range alive {
		hosts = append(hosts, r.Host)
	}
	return errors.Join(
		storage.WriteLines(layout.AlivePath(), hosts),
		storage.WriteJSON(layout.LivenessPath(), alive),
	)
}

// ReadAlive loads the live results of a previous probe. When liveness.json is
// missing it falls back to alive.txt and assumes HTTPS.
func ReadAlive(layout storage.RunLayout) ([]models.LivenessResult, error) {
	var results []models.LivenessResult
	err := storage.ReadJSON(layout.LivenessPath(), &results)
	if err == nil {
		return results, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	hosts, err := storage.ReadLines(layout.AlivePath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.LivenessResult{}, nil
		}
		return nil, err
	}
	for _, h := range hosts {
		results = append(results, models.LivenessResult{
			Host: h, Alive: true, Scheme: models.SchemeHTTPS, URL: "https://" + h,
		})
	}
	return results, nil
}
