package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance sweep and exit",
		Long:  `Auto-close resolved tickets past the grace period, warn about stuck and overdue tickets, and prune old records.`,
		RunE:  runSweep,
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	a, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ran, err := a.maintenanceWorker().Tick(ctx)
	if err != nil {
		return err
	}
	if !ran {
		logger.Info("another instance holds the maintenance lock")
	}
	return nil
}
