package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/metrics"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/pipeline"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
	"github.com/hakim/reconsweep/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runSweep is the root command: one full run against args[0]
func runSweep(cmd *cobra.Command, args []string) error {
	// ── 1. Read flags and validate the target ──────────────────────────────────
	target, err := models.ParseTarget(args[0])
	if err != nil {
		return err
	}

	stagesFlag, _ := cmd.Flags().GetString("stages")
	skipFlag, _ := cmd.Flags().GetString("skip")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}
	stageList := splitCSV(stagesFlag)
	skipList := splitCSV(skipFlag)

	// ── 2. Signals: the first stops new work, a second kills the process ───────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	// ── 3. Logging: run.log once the directory exists, stderr with --verbose ───
	level := cfg.LogLevel
	var consoleLog io.Writer
	if verbose {
		level = "debug"
		consoleLog = os.Stderr
	}
	runLog := &logging.DeferredWriter{}
	logger := logging.New(logging.Options{Level: level, Console: consoleLog, File: runLog}).
		WithField("target", target.String())

	var logFile *os.File
	defer func() {
		if logFile != nil {
			runLog.Set(nil)
			logFile.Close()
		}
	}()

	// ── 4. Open run history; a locked or broken database never blocks a run ──
	history := openHistory(cfg.DBPath, logger)
	defer history.Close()

	previous, err := history.GetLatestRun(target.String())
	if err != nil {
		logger.WithError(err).Warn("could not load previous run")
	}

	// ── 5. Build stage closures ────────────────────────────────────────────────
	env := &stageEnv{
		cfg:          cfg,
		target:       target,
		logger:       logger,
		recorder:     metrics.NewRecorder(target.String()),
		previous:     previous,
		showProgress: !verbose,
	}
	allStages := env.stages()
	selected := pipeline.SelectedNames(allStages, stageList, skipList)

	// ── 6. Build PipelineConfig ────────────────────────────────────────────────
	scope := &pipeline.ScopeConfig{
		AllowedDomains:  cfg.Scope.AllowedDomains,
		ExcludedDomains: cfg.Scope.ExcludedDomains,
	}
	pipelineCfg := pipeline.PipelineConfig{
		Target:        target,
		OutputDir:     outputDir,
		Stages:        stageList,
		Skip:          skipList,
		Timeout:       config.Duration(cfg.Run.Timeout, 2*time.Hour),
		ReportTimeout: config.Duration(cfg.Run.ReportTimeout, 30*time.Second),
		Preflight:     func() error { return preflight(cfg, selected) },
		Scope:         scope,
		Notify:        &pipeline.NotifyConfig{WebhookURL: cfg.Notify.WebhookURL},
		Logger:        logger,
		OnProvisioned: func(layout storage.RunLayout) {
			f, err := logging.OpenFile(layout.LogPath())
			if err != nil {
				out.Warnf("Could not open run log: %v", err)
			} else {
				logFile = f
				runLog.Set(f)
			}
			out.Infof("Run directory: %s", layout.Root)
		},
		OnStageStart: func(name string, index, total int) {
			out.Infof("Stage %d/%d: %s...", index+1, total, name)
		},
		OnStageDone: func(name string, index, total int, err error, elapsed time.Duration) {
			env.recorder.ObserveStage(name, elapsed, err)
			if err != nil {
				out.Warnf("Stage %d/%d: %s finished with errors (%s)", index+1, total, name, elapsed.Round(time.Millisecond))
				out.Plainf("%s", firstLine(err.Error()))
			} else {
				out.Successf("Stage %d/%d: %s complete (%s)", index+1, total, name, elapsed.Round(time.Millisecond))
			}
		},
	}

	// ── 7. Run the pipeline ────────────────────────────────────────────────────
	out.Infof("Starting reconnaissance sweep for %s", target)

	result, err := pipeline.RunPipeline(ctx, pipelineCfg, allStages, env.finalize, history)
	if result != nil {
		printSummary(result)
	}
	return err
}

// runHistory is the part of storage.Store a sweep uses
type runHistory interface {
	pipeline.StoreInterface
	GetLatestRun(target string) (*models.RunMeta, error)
	Close() error
}

// openHistory opens the run history database. When that fails, usually
// because a concurrent run holds the lock, the sweep continues with a
// history that records nothing.
func openHistory(path string, logger *logrus.Entry) runHistory {
	store, err := storage.NewStore(path)
	if err != nil {
		out.Warnf("Run history unavailable, this run will not be recorded: %v", err)
		logger.WithError(err).Warn("run history unavailable")
		return noHistory{}
	}
	return store
}

// noHistory stands in for an unavailable run history
type noHistory struct{}

func (noHistory) SaveRun(*models.RunMeta) error { return nil }

func (noHistory) GetLatestRun(string) (*models.RunMeta, error) { return nil, nil }

func (noHistory) Close() error { return nil }

// preflight verifies every tool the selected stages will invoke
func preflight(cfg *config.Config, selected []string) error {
	reqs := requirementsFor(cfg, selected)
	err := tools.Preflight(reqs)

	var missing *reconerr.MissingDependencyError
	if errors.As(err, &missing) {
		out.Errorf("Pre-flight check failed:")
		for _, req := range reqs {
			if slices.Contains(missing.Tools, req.Name) {
				out.Plainf("%-12s install: %s", req.Name, req.InstallCmd)
			}
		}
	}
	return err
}

// requirementsFor maps the selected stages onto the tools they shell out to
func requirementsFor(cfg *config.Config, selected []string) []tools.ToolRequirement {
	var reqs []tools.ToolRequirement
	add := func(name, binary string) {
		if req, ok := tools.Lookup(name, binary); ok {
			reqs = append(reqs, req)
		}
	}

	for _, stage := range selected {
		switch stage {
		case stageWhois:
			add("whois", cfg.Tools.Whois.Path)
		case stageEnumerate:
			for _, src := range cfg.Enumeration.Sources {
				add(src, toolConfig(cfg, src).Path)
			}
		case stageProbe:
			if cfg.Probe.Engine != "native" {
				add(cfg.Probe.Engine, toolConfig(cfg, cfg.Probe.Engine).Path)
			}
		case stageScreenshot:
			switch cfg.Screenshot.Engine {
			case "gowitness":
				add("gowitness", cfg.Tools.Gowitness.Path)
			case "chromedp":
				add("chrome", cfg.Screenshot.ChromePath)
			}
		}
	}
	return reqs
}

func toolConfig(cfg *config.Config, name string) config.ToolConfig {
	switch name {
	case "subfinder":
		return cfg.Tools.Subfinder
	case "assetfinder":
		return cfg.Tools.Assetfinder
	case "tlsx":
		return cfg.Tools.Tlsx
	case "httprobe":
		return cfg.Tools.Httprobe
	case "httpx":
		return cfg.Tools.Httpx
	default:
		return config.ToolConfig{}
	}
}

func printSummary(result *pipeline.PipelineResult) {
	fmt.Println()
	switch result.Status {
	case models.StatusComplete:
		out.Successf("Sweep complete!")
	case models.StatusFailed:
		out.Errorf("Sweep failed")
	default:
		out.Warnf("Sweep finished: %s", result.Status)
	}
	out.Plainf("Target:      %s", result.Target)
	out.Plainf("Run ID:      %s", result.RunID)
	out.Plainf("Run dir:     %s", result.RunDir)
	out.Plainf("Subdomains:  %d", result.SubdomainCount)
	out.Plainf("Alive:       %d", result.AliveCount)
	out.Plainf("Elapsed:     %s", result.Elapsed.Round(time.Second))
	out.Plainf("Stages:      %s", formatStages(result.StagesRun))
	if len(result.Skipped) > 0 {
		out.Plainf("Skipped:     %s", formatStages(result.Skipped))
	}

	if len(result.StageErrors) > 0 {
		fmt.Println()
		out.Warnf("Stage errors:")
		for _, stage := range sortedKeys(result.StageErrors) {
			out.Plainf("%-12s %s", stage+":", firstLine(result.StageErrors[stage]))
		}
	}
}

// splitCSV splits a comma-separated string into a trimmed, non-empty slice.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
