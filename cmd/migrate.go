package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/issue-tracker/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run storage migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations for the configured storage driver",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrate up: ok", "storage", cfg.StorageDriver)
	return nil
}
