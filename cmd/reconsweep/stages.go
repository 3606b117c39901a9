package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/diff"
	"github.com/hakim/reconsweep/internal/discovery"
	"github.com/hakim/reconsweep/internal/httpprobe"
	"github.com/hakim/reconsweep/internal/identity"
	"github.com/hakim/reconsweep/internal/metrics"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/pipeline"
	"github.com/hakim/reconsweep/internal/report"
	"github.com/hakim/reconsweep/internal/screenshot"
	"github.com/hakim/reconsweep/internal/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

const (
	stageWhois      = "whois"
	stageEnumerate  = "enumerate"
	stageProbe      = "probe"
	stageScreenshot = "screenshot"
)

// stageEnv carries what every stage closure needs for one run
type stageEnv struct {
	cfg          *config.Config
	target       models.Target
	logger       *logrus.Entry
	recorder     *metrics.Recorder
	previous     *models.RunMeta // latest run recorded before this one, if any
	showProgress bool
	progressOut  io.Writer
}

// stages returns the pipeline stages in canonical order:
// whois, enumerate, probe, screenshot.
func (e *stageEnv) stages() []pipeline.Stage {
	return []pipeline.Stage{
		{Name: stageWhois, Run: e.runWhois},
		{Name: stageEnumerate, Run: e.runEnumerate},
		{Name: stageProbe, Run: e.runProbe},
		{Name: stageScreenshot, Run: e.runScreenshot},
	}
}

func (e *stageEnv) runWhois(ctx context.Context, layout storage.RunLayout) error {
	err := identity.Run(ctx, layout, e.target, identity.Config{
		Binary:  e.cfg.Tools.Whois.Binary("whois"),
		Args:    e.cfg.Tools.Whois.Args,
		Timeout: e.cfg.Tools.Whois.TimeoutDuration(30 * time.Second),
		Logger:  e.logger.WithField("stage", stageWhois),
	})
	if err == nil {
		out.Plainf("[>] WHOIS saved to %s", layout.WhoisPath())
	}
	return err
}

func (e *stageEnv) runEnumerate(ctx context.Context, layout storage.RunLayout) error {
	sources, err := discovery.BuildSources(e.cfg)
	if err != nil {
		return err
	}

	result, enumErr := discovery.Enumerate(ctx, e.target, sources, e.logger.WithField("stage", stageEnumerate))
	if result == nil {
		return enumErr
	}

	if err := discovery.WriteArtifacts(layout, result); err != nil {
		return errors.Join(enumErr, fmt.Errorf("writing enumeration artifacts: %w", err))
	}

	out.Plainf("[>] %d/%d sources returned results, %d unique subdomains",
		result.Succeeded(), len(result.Sources), len(result.Subdomains))
	return enumErr
}

func (e *stageEnv) runProbe(ctx context.Context, layout storage.RunLayout) error {
	hosts, err := discovery.ReadSubdomains(layout)
	if err != nil {
		return fmt.Errorf("reading subdomains: %w", err)
	}
	if len(hosts) == 0 {
		out.Plainf("[>] No subdomains to probe")
	} else {
		out.Plainf("[>] Probing %d hosts with %s", len(hosts), e.cfg.Probe.Engine)
	}

	logger := e.logger.WithField("stage", stageProbe)
	bar := e.newBar(len(hosts), "probing")
	prober, err := httpprobe.NewProber(e.cfg, logger, func(models.LivenessResult) {
		bar.Add(1)
	})
	if err != nil {
		return err
	}

	results, probeErr := httpprobe.Run(ctx, hosts, prober, httpprobe.RunOptions{
		Resolver:        e.cfg.Probe.Resolver,
		ResolverTimeout: 3 * time.Second,
		Logger:          logger,
	})
	bar.Finish()
	if results == nil {
		return probeErr
	}

	if err := httpprobe.WriteArtifacts(layout, results); err != nil {
		return errors.Join(probeErr, fmt.Errorf("writing liveness artifacts: %w", err))
	}

	if len(hosts) > 0 {
		out.Plainf("[>] %d/%d hosts alive", len(httpprobe.Alive(results)), len(hosts))
	}
	return probeErr
}

func (e *stageEnv) runScreenshot(ctx context.Context, layout storage.RunLayout) error {
	alive, err := httpprobe.ReadAlive(layout)
	if err != nil {
		return fmt.Errorf("reading alive hosts: %w", err)
	}
	if len(alive) == 0 {
		out.Plainf("[>] No alive hosts to capture")
		return nil
	}

	engine, release, err := screenshot.NewEngine(e.cfg)
	if err != nil {
		return err
	}
	defer release()

	out.Plainf("[>] Capturing %d hosts with %s", len(alive), e.cfg.Screenshot.Engine)

	bar := e.newBar(len(alive), "capturing")
	results, captureErr := screenshot.Capture(ctx, layout, alive, engine, screenshot.Options{
		Concurrency: e.cfg.Screenshot.Concurrency,
		Timeout:     config.Duration(e.cfg.Screenshot.Timeout, 20*time.Second),
		Grace:       config.Duration(e.cfg.Run.GracePeriod, 10*time.Second),
		Logger:      e.logger.WithField("stage", stageScreenshot),
		OnResult: func(screenshot.Result) {
			bar.Add(1)
		},
	})
	bar.Finish()

	captured := 0
	for _, r := range results {
		if r.Err == nil {
			captured++
		}
	}
	out.Plainf("[>] %d/%d screenshots captured in %s", captured, len(alive), layout.ScreenshotsDir())
	return captureErr
}

// finalize writes report.md and, when enabled, metrics.prom
func (e *stageEnv) finalize(_ context.Context, layout storage.RunLayout, result *pipeline.PipelineResult) error {
	summary, err := report.Collect(layout, e.target.String())
	if err != nil {
		e.logger.WithError(err).Warn("some artifacts could not be read")
	}
	summary.Status = result.Status
	summary.StageErrors = result.StageErrors
	summary.Changes = e.changesSince(layout)

	result.SubdomainCount = len(summary.Subdomains)
	result.AliveCount = len(summary.Alive)

	if err := report.Write(layout, summary); err != nil {
		return err
	}
	out.Successf("Report written to %s", layout.ReportPath())

	if e.cfg.Metrics.Enabled {
		e.recorder.SetCounts(metrics.Counts{
			Subdomains:   len(summary.Subdomains),
			Alive:        len(summary.Alive),
			Screenshots:  len(summary.Screenshots),
			SourcesOK:    summary.SourcesSucceeded(),
			SourcesTotal: len(summary.Sources),
		})
		e.recorder.SetStatus(string(result.Status))
		if err := e.recorder.WriteFile(layout.MetricsPath()); err != nil {
			e.logger.WithError(err).Warn("could not write metrics")
		}
	}
	return nil
}

// changesSince compares this run's artifacts with the previous run's. The
// previous run directory is only read. Nil when there is nothing to compare.
func (e *stageEnv) changesSince(layout storage.RunLayout) *diff.Result {
	if e.previous == nil || e.previous.Dir == "" || e.previous.Dir == layout.Root {
		return nil
	}
	logger := e.logger.WithField("previous_run", e.previous.ID)

	previous, err := diff.LoadSnapshot(storage.RunLayout{Root: e.previous.Dir})
	if err != nil {
		logger.WithError(err).Warn("previous run unreadable; skipping change summary")
		return nil
	}
	current, err := diff.LoadSnapshot(layout)
	if err != nil {
		logger.WithError(err).Warn("current run unreadable; skipping change summary")
		return nil
	}

	changes := diff.Compute(current, previous)
	logger.WithFields(logrus.Fields{
		"new_subdomains":     len(changes.NewSubdomains),
		"removed_subdomains": len(changes.RemovedSubdomains),
		"new_alive":          len(changes.NewAlive),
		"gone_alive":         len(changes.GoneAlive),
	}).Info("compared with previous run")
	return changes
}

// newBar returns a progress bar on stderr; hidden when --verbose streams logs
func (e *stageEnv) newBar(total int, description string) *progressbar.ProgressBar {
	w := e.progressOut
	if w == nil {
		w = os.Stderr
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("    "+description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetVisibility(e.showProgress && total > 0),
		progressbar.OptionClearOnFinish(),
	)
}
