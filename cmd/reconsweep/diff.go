package main

import (
	"fmt"

	"github.com/hakim/reconsweep/internal/diff"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/report"
	"github.com/hakim/reconsweep/internal/storage"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <target>",
	Short: "Compare two runs and report what changed",
	Long: `Compare a run against an earlier run for the same target.

Subdomains and alive hosts that appeared or went away are printed and written
to {run_dir}/report/diff.md. The earlier run's directory is only read.

By default the latest run is compared with the run recorded before it. --run
and --compare select either side by run ID.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		compareID, _ := cmd.Flags().GetString("compare")

		target, err := models.ParseTarget(args[0])
		if err != nil {
			return err
		}

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		current, previous, err := pickRuns(store, target.String(), runID, compareID)
		if err != nil {
			return err
		}
		if current == nil {
			out.Warnf("No run history found for %s", target)
			return nil
		}
		if previous == nil {
			out.Warnf("No previous run found for comparison")
			return nil
		}

		out.Infof("Current run:  %s (%s)", shortRunID(current.ID), current.Dir)
		out.Infof("Previous run: %s (%s)", shortRunID(previous.ID), previous.Dir)

		currentLayout := storage.RunLayout{Root: current.Dir}
		currentSnap, err := diff.LoadSnapshot(currentLayout)
		if err != nil {
			return fmt.Errorf("loading current run: %w", err)
		}
		previousSnap, err := diff.LoadSnapshot(storage.RunLayout{Root: previous.Dir})
		if err != nil {
			return fmt.Errorf("loading previous run: %w", err)
		}

		result := diff.Compute(currentSnap, previousSnap)

		if err := report.WriteDiff(currentLayout, target.String(), result); err != nil {
			out.Warnf("Could not write diff report: %v", err)
		} else {
			out.Successf("Diff report written to %s", currentLayout.DiffPath())
		}

		fmt.Println()
		out.Successf("Diff complete!")
		out.Plainf("Subdomains:  +%d new, -%d removed", len(result.NewSubdomains), len(result.RemovedSubdomains))
		out.Plainf("Alive hosts: +%d new, -%d gone", len(result.NewAlive), len(result.GoneAlive))
		for _, h := range result.NewSubdomains {
			out.Plainf("+ %s", h)
		}
		for _, h := range result.RemovedSubdomains {
			out.Plainf("- %s", h)
		}
		return nil
	},
}

// runLister is the part of storage.Store the diff command reads
type runLister interface {
	ListRuns(target string) ([]*models.RunMeta, error)
}

// pickRuns resolves the two runs to compare. runs come back newest first;
// without IDs the latest run is compared with the one recorded before it.
// A nil current means the target has no history, a nil previous means
// there is nothing earlier to compare against.
func pickRuns(store runLister, target, runID, compareID string) (current, previous *models.RunMeta, err error) {
	runs, err := store.ListRuns(target)
	if err != nil {
		return nil, nil, fmt.Errorf("listing runs for %s: %w", target, err)
	}
	if len(runs) == 0 {
		return nil, nil, nil
	}

	currentIdx := 0
	if runID != "" {
		currentIdx = indexOfRun(runs, runID)
		if currentIdx < 0 {
			return nil, nil, fmt.Errorf("no run %s for %s", runID, target)
		}
	}
	current = runs[currentIdx]

	if compareID != "" {
		i := indexOfRun(runs, compareID)
		if i < 0 {
			return nil, nil, fmt.Errorf("no run %s for %s", compareID, target)
		}
		if runs[i].Dir == current.Dir {
			return nil, nil, fmt.Errorf("run %s cannot be compared with itself", compareID)
		}
		return current, runs[i], nil
	}

	for _, r := range runs[currentIdx+1:] {
		if r.Dir != "" && r.Dir != current.Dir {
			return current, r, nil
		}
	}
	return current, nil, nil
}

func indexOfRun(runs []*models.RunMeta, id string) int {
	for i, r := range runs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func init() {
	diffCmd.Flags().String("run", "", "Run ID to treat as current (default: latest)")
	diffCmd.Flags().String("compare", "", "Run ID to compare against (default: the run before --run)")
	rootCmd.AddCommand(diffCmd)
}
