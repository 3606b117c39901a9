package screenshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/hakim/reconsweep/internal/graceful"
	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

// Options bounds the capture stage
type Options struct {
	Concurrency int
	Timeout     time.Duration // per host
	Grace       time.Duration
	Logger      *logrus.Entry

	// OnResult is called once per attempted host, from worker goroutines
	OnResult func(Result)
}

// Result is the outcome for one host. Path is empty on failure.
type Result struct {
	Host string
	Path string
	Err  error
}

// Capture screenshots every live host into layout's screenshots directory.
// Each failure is isolated to its host and leaves no file behind; all of
// them come back joined as *reconerr.CaptureFailure values.
func Capture(ctx context.Context, layout storage.RunLayout, alive []models.LivenessResult, engine Engine, opts Options) ([]Result, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if len(alive) == 0 {
		opts.Logger.Info("no live hosts to capture")
		return nil, nil
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	workCtx, cancel := graceful.WithGrace(ctx, opts.Grace)
	defer cancel()

	start := time.Now()
	workers := pool.NewWithResults[Result]().WithMaxGoroutines(opts.Concurrency)
	for _, host := range alive {
		if graceful.Stopping(ctx) {
			break
		}
		workers.Go(func() Result {
			r := captureHost(workCtx, layout, host, engine, opts.Timeout)
			if opts.OnResult != nil {
				opts.OnResult(r)
			}
			return r
		})
	}
	results := workers.Wait()

	var errs []error
	captured := 0
	for _, r := range results {
		if r.Err != nil {
			opts.Logger.WithField("host", r.Host).WithError(r.Err).Warn("screenshot failed")
			errs = append(errs, r.Err)
			continue
		}
		captured++
	}
	opts.Logger.WithField("elapsed", time.Since(start).Round(time.Millisecond)).
		Infof("%d/%d hosts captured", captured, len(alive))

	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("capture interrupted after %d/%d hosts: %w", len(results), len(alive), err))
	}
	return results, errors.Join(errs...)
}

func captureHost(ctx context.Context, layout storage.RunLayout, host models.LivenessResult, engine Engine, timeout time.Duration) Result {
	hostCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := host.URL
	if target == "" {
		scheme := host.Scheme
		if scheme == "" {
			scheme = models.SchemeHTTPS
		}
		target = string(scheme) + "://" + host.Host
	}

	dest := layout.ScreenshotPath(host.Host, "png")
	if err := captureSafely(hostCtx, engine, target, dest); err != nil {
		os.Remove(dest)
		if errors.Is(hostCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", reconerr.ErrTimeout, err)
		}
		return Result{Host: host.Host, Err: &reconerr.CaptureFailure{Host: host.Host, Err: err}}
	}
	return Result{Host: host.Host, Path: dest}
}

// captureSafely turns an engine panic into an ordinary failure
func captureSafely(ctx context.Context, engine Engine, url, dest string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("screenshot engine panicked: %v", r)
		}
	}()
	return engine.Capture(ctx, url, dest)
}
