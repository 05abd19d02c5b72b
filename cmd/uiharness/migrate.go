package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/ui-harness/database"
	"github.com/hairizuan-noorazman/ui-harness/harness"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run history database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, err := harness.LoadSettings(flagConfig)
			if err != nil {
				return err
			}

			db, err := connectDatabase(settings)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get database instance: %w", err)
			}
			defer sqlDB.Close()

			version, dirty, err := database.Version(sqlDB, settings.Database.Driver)
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), "Migrations applied successfully (version %d, dirty %t)", version, dirty)
			return nil
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, err := harness.LoadSettings(flagConfig)
			if err != nil {
				return err
			}

			db, err := database.Connect(database.ConfigFromSettings(settings.Database))
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get database instance: %w", err)
			}
			defer sqlDB.Close()

			if err := database.RollbackMigration(sqlDB, settings.Database.Driver); err != nil {
				return err
			}

			printMessage(cmd.OutOrStdout(), "Migration rolled back successfully")
			return nil
		},
	}

	cmd.AddCommand(upCmd)
	cmd.AddCommand(downCmd)
	return cmd
}
