package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/storage"
	"github.com/spf13/cobra"
)

var (
	initForce bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize reconsweep with default configuration",
	Long: `Creates a default configuration file (reconsweep.yaml), the output
directory and the run history database.

This is typically the first command you run when setting up reconsweep.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := filepath.Join(initDir, "reconsweep.yaml")

		if _, err := os.Stat(configPath); err == nil && !initForce {
			return fmt.Errorf("config file already exists at %s. Use --force to overwrite", configPath)
		}

		if err := storage.EnsureDir(initDir); err != nil {
			return err
		}
		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		out.Successf("Created %s with default configuration", configPath)

		// Load the config we just created to get paths
		loaded, err := config.Load(configPath, true)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := storage.EnsureDir(loaded.OutputDir); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		out.Successf("Output directory: %s", loaded.OutputDir)

		store, err := storage.NewStore(loaded.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		out.Successf("Initialized database: %s", store.Path())

		fmt.Println()
		fmt.Println("reconsweep initialized successfully!")
		fmt.Println("Run 'reconsweep check' to verify your tools.")

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "directory to write reconsweep.yaml into")
	rootCmd.AddCommand(initCmd)
}
