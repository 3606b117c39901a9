package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/tools"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check for required external tools",
	Long: `Verify that the external tools the configured stages need are installed.
Tools the current configuration does not use are listed as optional.
Shows installation status, version information, and installation
instructions for missing tools.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		results := tools.CheckTools(checkList(cfg))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Tool\tStatus\tBinary\tVersion\tPurpose")
		fmt.Fprintln(w, "----\t------\t------\t-------\t-------")

		foundCount := 0
		requiredMissing := 0

		for _, result := range results {
			status := "[-]"
			version := "-"

			if result.Found {
				status = "[+]"
				foundCount++
				if result.Version != "" && result.Version != "unknown" {
					version = result.Version
				}
			} else if result.Tool.Required {
				requiredMissing++
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				result.Tool.Name,
				status,
				result.Tool.Binary,
				version,
				result.Tool.Purpose)
		}

		w.Flush()

		fmt.Println()
		missingTools := false
		for _, result := range results {
			if result.Found {
				continue
			}
			if !missingTools {
				fmt.Println("Missing tools:")
				missingTools = true
			}
			required := ""
			if result.Tool.Required {
				required = " (REQUIRED)"
			}
			fmt.Printf("  %s%s\n    Install: %s\n", result.Tool.Name, required, result.Tool.InstallCmd)
		}

		fmt.Println()
		if requiredMissing > 0 {
			out.Warnf("%d/%d tools found, %d required tools missing", foundCount, len(results), requiredMissing)
			return fmt.Errorf("required tools are missing")
		}
		out.Successf("%d/%d tools found, all required tools present", foundCount, len(results))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// checkList is the full tool catalogue with the entries every stage would
// need under cfg marked required and pointed at their configured binaries.
func checkList(cfg *config.Config) []tools.ToolRequirement {
	required := make(map[string]tools.ToolRequirement)
	for _, req := range requirementsFor(cfg, []string{stageWhois, stageEnumerate, stageProbe, stageScreenshot}) {
		required[req.Name] = req
	}

	list := tools.DefaultTools()
	for i, t := range list {
		if req, ok := required[t.Name]; ok {
			list[i] = req
		}
	}
	return list
}
