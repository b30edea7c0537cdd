package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/nodetasks/pkg/logger"
	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

func newDrainCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Run the task runner once and print the report",
		Long: `drain runs one runner cycle and prints its report as JSON.
With --all it keeps running cycles while due tasks remain, which suits
cron-driven deployments without a long-lived serve process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return drain(cmd.Context(), all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "repeat until no due tasks remain or the lock is contended")
	return cmd
}

func drain(ctx context.Context, all bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			a.log.Error("failed to close connections", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(os.Stdout)
	for {
		report, err := a.runner.Run(ctx)
		if err != nil && !errors.Is(err, tasks.ErrRunnerBusy) {
			return err
		}
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !all || report.Contended || report.Remaining == 0 || ctx.Err() != nil {
			return nil
		}
	}
}
