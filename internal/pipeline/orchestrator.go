package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

// StoreInterface is the minimal bbolt contract required by the orchestrator.
// Using an interface keeps the package testable without a real database.
type StoreInterface interface {
	SaveRun(meta *models.RunMeta) error
}

// StageFunc is the signature each pipeline stage must satisfy.
// ctx carries the deadline; layout resolves every artifact path of the run.
type StageFunc func(ctx context.Context, layout storage.RunLayout) error

// Stage pairs a human-readable name with its execution function.
type Stage struct {
	Name string
	Run  StageFunc
}

// FinalizeFunc runs after every stage, including after cancellation. It may
// fill in the result's counts.
type FinalizeFunc func(ctx context.Context, layout storage.RunLayout, result *PipelineResult) error

// ProvisionFunc creates the run directory
type ProvisionFunc func(baseDir, target string, startedAt time.Time) (storage.RunLayout, error)

// PipelineConfig controls how RunPipeline behaves for a single run.
type PipelineConfig struct {
	// Target is the validated domain being scanned. Required.
	Target models.Target

	// OutputDir is the parent of the per-run directory.
	OutputDir string

	// Stages is the ordered allow-list of stage names to run.
	// Empty means "run all stages defined in allStages".
	Stages []string

	// Skip is a list of stage names to exclude, applied after Stages filtering.
	Skip []string

	// Timeout caps the total wall-clock time for all stages combined.
	// Zero means no timeout beyond the caller's context.
	Timeout time.Duration

	// ReportTimeout bounds the finalizer, which runs detached from
	// cancellation. Zero means 30s.
	ReportTimeout time.Duration

	// Preflight verifies external dependencies before anything touches disk.
	Preflight func() error

	// Provision creates the run directory. Nil means storage.CreateRunDir.
	Provision ProvisionFunc

	// Scope, when set, rejects out-of-scope targets before preflight.
	Scope *ScopeConfig

	// Notify, when set, receives a completion webhook.
	Notify *NotifyConfig

	Logger *logrus.Entry

	// Now returns the run's start time. Nil means time.Now.
	Now func() time.Time

	// OnProvisioned is called once the run directory exists.
	OnProvisioned func(layout storage.RunLayout)

	// OnStageStart is called immediately before each stage executes.
	// index is 0-based; total is the count of stages selected to run.
	OnStageStart func(name string, index, total int)

	// OnStageDone is called immediately after each stage returns (or panics).
	// err is nil on success; elapsed is the wall time for that stage alone.
	OnStageDone func(name string, index, total int, err error, elapsed time.Duration)
}

// PipelineResult summarises what happened after RunPipeline returns.
type PipelineResult struct {
	Target string
	RunDir string
	RunID  string

	// StagesRun contains the names of stages that were attempted (panics included).
	StagesRun []string

	// Skipped lists selected stages that never started because the run was
	// cancelled or a fatal error stopped it.
	Skipped []string

	// StageErrors maps stage name to error message for every stage that failed.
	// Stages not present here completed without error.
	StageErrors map[string]string

	// Elapsed is the total wall time from provisioning to the end of the finalizer.
	Elapsed time.Duration

	Status models.RunStatus

	SubdomainCount int
	AliveCount     int
}

// StageNames lists the canonical stage names of allStages
func StageNames(allStages []Stage) []string {
	names := make([]string, 0, len(allStages))
	for _, s := range allStages {
		names = append(names, s.Name)
	}
	return names
}

// SelectedNames returns the names of the stages that survive the allow and
// skip lists, in canonical order.
func SelectedNames(allStages []Stage, allowNames, skipNames []string) []string {
	return StageNames(filterStages(allStages, allowNames, skipNames))
}

// RunPipeline drives one run from preflight to report.
//
// Before any stage runs, the target is checked against scope, dependencies
// are verified and the run directory is created; a failure in any of these
// is fatal and returned without a result.
//
// Stage selection:
//   - allStages defines the canonical order; only stages present in that slice
//     are eligible to run.
//   - cfg.Stages, when non-empty, further restricts which stages run (order
//     is still governed by allStages, not the caller's list).
//   - cfg.Skip removes specific stages from the resulting set.
//
// Crash isolation:
//
//	Each stage is wrapped in a deferred recover so a panicking stage is
//	recorded as an error and the remaining stages still execute. A fatal
//	error (reconerr.IsFatal) stops the remaining stages; cancellation of ctx
//	does the same.
//
// The finalizer always runs once the directory exists, on a context detached
// from ctx and bounded by cfg.ReportTimeout. The bbolt record is created
// (StatusRunning) before the first stage and updated after every stage and
// once more with the final status.
func RunPipeline(
	ctx context.Context,
	cfg PipelineConfig,
	allStages []Stage,
	finalize FinalizeFunc,
	store StoreInterface,
) (*PipelineResult, error) {

	// ── 1. Validate required inputs ───────────────────────────────────────────
	target := cfg.Target.String()
	if target == "" {
		return nil, fmt.Errorf("pipeline: Target is required")
	}
	if store == nil {
		return nil, fmt.Errorf("pipeline: store must not be nil")
	}
	if err := validateStageNames(allStages, cfg.Stages, cfg.Skip); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	// ── 2. Scope and preflight ────────────────────────────────────────────────
	if cfg.Scope != nil {
		if err := cfg.Scope.ValidateTarget(cfg.Target); err != nil {
			return nil, err
		}
	}
	if cfg.Preflight != nil {
		if err := cfg.Preflight(); err != nil {
			logger.WithError(err).Error("preflight failed")
			return nil, err
		}
	}

	// ── 3. Apply stage filtering ──────────────────────────────────────────────
	selected := filterStages(allStages, cfg.Stages, cfg.Skip)
	if len(selected) == 0 {
		logger.Warn("no stages remain after filtering; only the report will be written")
	}

	// ── 4. Create the run directory ───────────────────────────────────────────
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	provision := cfg.Provision
	if provision == nil {
		provision = storage.CreateRunDir
	}

	startedAt := now()
	layout, err := provision(cfg.OutputDir, target, startedAt)
	if err != nil {
		logger.WithError(err).Error("creating run directory failed")
		return nil, err
	}
	if cfg.OnProvisioned != nil {
		cfg.OnProvisioned(layout)
	}

	meta := models.NewRun(cfg.Target, startedAt)
	meta.Dir = layout.Root
	if err := store.SaveRun(meta); err != nil {
		logger.WithError(err).Warn("could not save initial run record")
	}
	logger.WithFields(logrus.Fields{
		"run_id": meta.ID,
		"target": target,
		"dir":    layout.Root,
		"stages": StageNames(selected),
	}).Info("run started")

	// ── 5. Apply optional timeout ─────────────────────────────────────────────
	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	// ── 6. Execute stages ─────────────────────────────────────────────────────
	result := &PipelineResult{
		Target:      target,
		RunDir:      layout.Root,
		RunID:       meta.ID,
		StageErrors: make(map[string]string),
	}

	pipelineStart := time.Now()
	total := len(selected)
	var fatalErr error

	for i, stage := range selected {
		if fatalErr != nil || runCtx.Err() != nil {
			result.Skipped = append(result.Skipped, stage.Name)
			continue
		}

		if cfg.OnStageStart != nil {
			cfg.OnStageStart(stage.Name, i, total)
		}

		stageStart := time.Now()
		stageErr := runStageIsolated(runCtx, stage, layout)
		stageElapsed := time.Since(stageStart)

		result.StagesRun = append(result.StagesRun, stage.Name)

		if stageErr != nil {
			result.StageErrors[stage.Name] = stageErr.Error()
			logger.WithFields(logrus.Fields{
				"stage":   stage.Name,
				"elapsed": stageElapsed.Round(time.Millisecond),
			}).WithError(stageErr).Warn("stage failed")
			if reconerr.IsFatal(stageErr) {
				fatalErr = stageErr
			}
		} else {
			logger.WithFields(logrus.Fields{
				"stage":   stage.Name,
				"elapsed": stageElapsed.Round(time.Millisecond),
			}).Info("stage complete")
		}

		if cfg.OnStageDone != nil {
			cfg.OnStageDone(stage.Name, i, total, stageErr, stageElapsed)
		}

		// Persist progress after each stage so a crash mid-pipeline leaves a
		// readable record in bbolt.
		meta.StagesRun = appendUnique(meta.StagesRun, stage.Name)
		maps.Copy(meta.StageErrors, result.StageErrors)
		if err := store.SaveRun(meta); err != nil {
			logger.WithField("stage", stage.Name).WithError(err).Warn("could not persist run progress")
		}
	}

	if len(result.Skipped) > 0 {
		logger.WithFields(logrus.Fields{"stages": result.Skipped, "cause": context.Cause(runCtx)}).Warn("stages skipped")
	}

	// ── 7. Finalize on a context that cancellation cannot reach ───────────────
	result.Status = resolveFinalStatus(runCtx, result.StageErrors, fatalErr)

	if finalize != nil {
		reportTimeout := cfg.ReportTimeout
		if reportTimeout <= 0 {
			reportTimeout = 30 * time.Second
		}
		finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		finalErr := finalizeIsolated(finalCtx, finalize, layout, result)
		cancel()

		if finalErr != nil {
			result.StageErrors["report"] = finalErr.Error()
			logger.WithError(finalErr).Error("report synthesis failed")
			if reconerr.IsFatal(finalErr) {
				fatalErr = errors.Join(fatalErr, finalErr)
			}
			result.Status = resolveFinalStatus(runCtx, result.StageErrors, fatalErr)
		}
	}

	result.Elapsed = time.Since(pipelineStart)

	// ── 8. Persist the final record and notify ────────────────────────────────
	completedAt := now()
	meta.CompletedAt = &completedAt
	meta.Status = result.Status
	maps.Copy(meta.StageErrors, result.StageErrors)
	meta.SubdomainCount = result.SubdomainCount
	meta.AliveCount = result.AliveCount
	if err := store.SaveRun(meta); err != nil {
		logger.WithError(err).Warn("could not update final run record")
	}

	if err := cfg.Notify.SendCompletion(context.WithoutCancel(ctx), result); err != nil {
		logger.WithError(err).Warn("completion webhook failed")
	}

	logger.WithFields(logrus.Fields{
		"status":  result.Status,
		"elapsed": result.Elapsed.Round(time.Millisecond),
	}).Info("run finished")

	return result, fatalErr
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// filterStages applies the allow-list (allowNames) and deny-list (skipNames)
// to allStages, preserving the order defined in allStages.
func filterStages(allStages []Stage, allowNames, skipNames []string) []Stage {
	allowSet := toSet(allowNames)
	skipSet := toSet(skipNames)

	var out []Stage
	for _, s := range allStages {
		// If an allow-list is provided, only include stages in it.
		if len(allowSet) > 0 && !allowSet[s.Name] {
			continue
		}
		if skipSet[s.Name] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// validateStageNames rejects allow/deny entries that name no known stage
func validateStageNames(allStages []Stage, lists ...[]string) error {
	known := toSet(StageNames(allStages))
	var unknown []string
	for _, list := range lists {
		for _, name := range list {
			if !known[name] && !slices.Contains(unknown, name) {
				unknown = append(unknown, name)
			}
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown stage(s) %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(StageNames(allStages), ", "))
	}
	return nil
}

// runStageIsolated runs a single stage inside a deferred recover so that a
// panic in stage code is caught and returned as an error rather than crashing
// the orchestrator process.
func runStageIsolated(ctx context.Context, s Stage, layout storage.RunLayout) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("stage %q panicked: %v", s.Name, r)
		}
	}()
	return s.Run(ctx, layout)
}

func finalizeIsolated(ctx context.Context, finalize FinalizeFunc, layout storage.RunLayout, result *PipelineResult) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("finalizer panicked: %v", r)
		}
	}()
	return finalize(ctx, layout, result)
}

// resolveFinalStatus maps how the run ended onto a RunStatus. A fatal error
// wins over cancellation, which wins over ordinary stage errors.
func resolveFinalStatus(runCtx context.Context, stageErrors map[string]string, fatalErr error) models.RunStatus {
	switch {
	case fatalErr != nil:
		return models.StatusFailed
	case runCtx.Err() != nil:
		return models.StatusCancelled
	case len(stageErrors) > 0:
		return models.StatusPartial
	default:
		return models.StatusComplete
	}
}

// appendUnique appends s to slice only if it is not already present.
func appendUnique(slice []string, s string) []string {
	if slices.Contains(slice, s) {
		return slice
	}
	return append(slice, s)
}

// toSet converts a string slice into a boolean lookup map.
// An empty slice produces an empty (not nil) map.
func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
