package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <target>",
	Short: "Show run history for a domain",
	Long: `Display a formatted table of past runs for a target domain.

Runs are listed newest-first. Each row shows the run ID (truncated), start time,
final status, artifact counts and which stages ran.

Use --limit to cap the number of rows shown (default: 10). --run <id> and
--latest print a single run in full.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		runID, _ := cmd.Flags().GetString("run")
		latest, _ := cmd.Flags().GetBool("latest")

		target, err := models.ParseTarget(args[0])
		if err != nil {
			return err
		}

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		if runID != "" {
			run, err := store.GetRun(runID)
			if err != nil {
				return fmt.Errorf("loading run %s: %w", runID, err)
			}
			if run == nil || run.Target != target.String() {
				return fmt.Errorf("no run %s for %s", runID, target)
			}
			printRun(run)
			return nil
		}

		if latest {
			run, err := store.GetLatestRun(target.String())
			if err != nil {
				return fmt.Errorf("loading latest run for %s: %w", target, err)
			}
			if run == nil {
				fmt.Printf("No run history found for %s\n", target)
				return nil
			}
			printRun(run)
			return nil
		}

		runs, err := store.ListRuns(target.String())
		if err != nil {
			return fmt.Errorf("listing runs for %s: %w", target, err)
		}

		if len(runs) == 0 {
			fmt.Printf("No run history found for %s\n", target)
			return nil
		}

		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}

		const separator = "────────────────────────────────────────────────────────────────────────────────"

		fmt.Printf("\nRun History for %s\n", target)
		fmt.Println(separator)
		fmt.Printf("  %-3s  %-12s  %-17s  %-10s  %6s  %6s  %s\n", "#", "Run ID", "Started", "Status", "Subs", "Alive", "Stages")
		fmt.Println(separator)

		for i, run := range runs {
			fmt.Printf("  %-3d  %-12s  %-17s  %-10s  %6d  %6d  %s\n",
				i+1,
				shortRunID(run.ID),
				run.StartedAt.UTC().Format("2006-01-02 15:04"),
				run.Status,
				run.SubdomainCount,
				run.AliveCount,
				formatStages(run.StagesRun))
		}

		fmt.Println(separator)
		fmt.Printf("Total: %d run(s)\n\n", len(runs))

		return nil
	},
}

func printRun(run *models.RunMeta) {
	fmt.Printf("Run ID:      %s\n", run.ID)
	fmt.Printf("Target:      %s\n", run.Target)
	fmt.Printf("Run dir:     %s\n", run.Dir)
	fmt.Printf("Started:     %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Printf("Completed:   %s (%s)\n",
			run.CompletedAt.UTC().Format(time.RFC3339),
			run.CompletedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Printf("Status:      %s\n", run.Status)
	fmt.Printf("Subdomains:  %d\n", run.SubdomainCount)
	fmt.Printf("Alive:       %d\n", run.AliveCount)
	fmt.Printf("Stages:      %s\n", formatStages(run.StagesRun))
	for _, stage := range sortedKeys(run.StageErrors) {
		fmt.Printf("    %-12s %s\n", stage+":", firstLine(run.StageErrors[stage]))
	}
}

// shortRunID returns the first 8 characters of a UUID followed by "..." for
// compact table display. Falls back to the full ID when shorter than 8 chars.
func shortRunID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// formatStages joins a stage list for display. Returns "-" when empty.
func formatStages(stages []string) string {
	if len(stages) == 0 {
		return "-"
	}
	return strings.Join(stages, " -> ")
}

func init() {
	historyCmd.Flags().Int("limit", 10, "Maximum number of runs to display")
	historyCmd.Flags().String("run", "", "Print one run in full by ID")
	historyCmd.Flags().Bool("latest", false, "Print the most recent run in full")
	rootCmd.AddCommand(historyCmd)
}
