package httpprobe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/hakim/reconsweep/internal/graceful"
	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
)

// NativeOptions configures the built-in prober
type NativeOptions struct {
	Concurrency int
	Timeout     time.Duration // per request
	RateLimit   float64       // requests per second, 0 disables
	Insecure    bool
	Grace       time.Duration
	Logger      *logrus.Entry

	// Client replaces the default client; tests use it to steer dialing
	Client *http.Client

	// OnResult is called once per probed host, from worker goroutines
	OnResult func(models.LivenessResult)
}

// NativeProber issues one GET per scheme, HTTPS first, and treats any HTTP
// response as alive.
type NativeProber struct {
	opts    NativeOptions
	client  *http.Client
	limiter *rate.Limiter
}

// NewNativeProber applies defaults and builds the HTTP client
func NewNativeProber(opts NativeOptions) *NativeProber {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	p := &NativeProber{opts: opts, client: opts.Client}
	if p.client == nil {
		p.client = newClient(opts)
	}
	if opts.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return p
}

func newClient(opts NativeOptions) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: opts.Insecure},
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
		DisableKeepAlives:     true,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Probe checks every host on a bounded pool. Hosts not yet started when ctx
// is cancelled are skipped; hosts in flight get the grace period.
func (p *NativeProber) Probe(ctx context.Context, hosts []string) ([]models.LivenessResult, error) {
	if len(hosts) == 0 {
		return []models.LivenessResult{}, nil
	}

	workCtx, cancel := graceful.WithGrace(ctx, p.opts.Grace)
	defer cancel()

	workers := pool.NewWithResults[models.LivenessResult]().WithMaxGoroutines(p.opts.Concurrency)
	for _, host := range hosts {
		if graceful.Stopping(ctx) {
			break
		}
		workers.Go(func() models.LivenessResult {
			r := p.probeHost(workCtx, host)
			if p.opts.OnResult != nil {
				p.opts.OnResult(r)
			}
			return r
		})
	}
	results := workers.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("probing interrupted after %d/%d hosts: %w", len(results), len(hosts), err)
	}
	return results, nil
}

func (p *NativeProber) probeHost(ctx context.Context, host string) models.LivenessResult {
	r, err := p.checkHost(ctx, host)
	if err != nil {
		p.opts.Logger.WithField("host", host).WithError(err).Debug("host not alive")
	}
	return r
}

// checkHost tries HTTPS then HTTP. A dead host comes back with a
// *reconerr.ProbeFailure carrying both attempts.
func (p *NativeProber) checkHost(ctx context.Context, host string) (models.LivenessResult, error) {
	var errs []error
	for _, scheme := range []models.Scheme{models.SchemeHTTPS, models.SchemeHTTP} {
		target := string(scheme) + "://" + host
		status, err := p.get(ctx, target)
		if err == nil {
			return models.LivenessResult{Host: host, Alive: true, Scheme: scheme, URL: target, StatusCode: status}, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", scheme, err))
		if ctx.Err() != nil {
			break
		}
	}

	failure := &reconerr.ProbeFailure{Host: host, Err: errors.Join(errs...)}
	return models.LivenessResult{Host: host, Error: failure.Err.Error()}, failure
}

func (p *NativeProber) get(ctx context.Context, target string) (int, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "reconsweep/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %w", reconerr.ErrTimeout, err)
		}
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.StatusCode, nil
}
