package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/data"
)

// migrateCmd creates or updates every table
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		models := data.Models()
		if err := db.Migrate(models...); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("schema migrated", zap.Int("models", len(models)))
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables (%s)\n", len(models), config.Database.Driver)
		return nil
	},
}

// statsCmd prints row counts per table
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts of the Reefs tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		for _, table := range []string{"users", "projects", "agent_traces", "agent_spans"} {
			var count int64
			if err := db.Table(table).Count(&count).Error; err != nil {
				return fmt.Errorf("count %s: %w", table, err)
			}
			fmt.Fprintf(out, "%-14s %d\n", table, count)
		}
		return nil
	},
}
