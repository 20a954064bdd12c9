package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

var (
	// Global flags
	configFile string
	verbose    bool

	config *conf.Config
	log    *logger.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reefsctl",
	Short: "reefsctl - maintenance commands for the Reefs backend",
	Long: `reefsctl works directly against the Reefs database.

It reads the same config file and REEFS_* environment overrides as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = conf.LoadConfig(configFile)
		if err != nil {
			return err
		}

		// stdout carries command output
		logCfg := config.Log
		logCfg.Output = "stderr"
		logCfg.Level = "warn"
		log, err = logger.New(&logCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose {
			return log.SetLevel("debug")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(migrateCmd, statsCmd, tracesCmd, toolsCmd)
}

func openDB() (*database.DB, error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
