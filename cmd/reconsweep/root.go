package main

import (
	"fmt"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/console"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	out     = console.Stdout()
)

var rootCmd = &cobra.Command{
	Use:   "reconsweep <target>",
	Short: "Single-target reconnaissance sweep",
	Long: `reconsweep runs a fixed reconnaissance pipeline against one domain:
WHOIS lookup, subdomain enumeration (subfinder, assetfinder, tlsx), HTTP
liveness probing and screenshot capture, then writes a markdown report.

Every run gets its own directory:
  {output_dir}/{target}_{YYYYMMDD_HHMMSS}/
    info/  subdomains/  screenshots/  report/

Examples:
  reconsweep example.com
  reconsweep example.com --skip screenshot
  reconsweep example.com --stages whois,enumerate --output-dir runs`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		skipConfig := map[string]bool{
			"init":    true,
			"help":    true,
			"version": true,
		}

		if skipConfig[cmd.Name()] {
			return nil
		}

		// Defaults apply when no file exists, unless one was named explicitly
		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags().Changed("config"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
	RunE: runSweep,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: reconsweep.yaml in ., ./configs or ~/.config/reconsweep)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "mirror the structured run log to stderr at debug level")

	rootCmd.Flags().String("stages", "", "Comma-separated stage names to run (whois,enumerate,probe,screenshot)")
	rootCmd.Flags().String("skip", "", "Comma-separated stage names to skip")
	rootCmd.Flags().String("output-dir", "", "Parent directory for run directories (overrides output_dir)")

	// Version flag
	rootCmd.Version = "0.1.0-dev"
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
