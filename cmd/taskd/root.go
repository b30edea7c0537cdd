package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/nodetasks/pkg/config"
)

// AppConfig holds the process-level settings of taskd
type AppConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"taskd"`
	// Store selects the task store: memory, mongo or pg.
	Store string `env:"TASKS_STORE" envDefault:"memory"`
	// SyncAbort returns sync rule failures to the caller of a pre-commit event.
	SyncAbort bool `env:"TASKS_SYNC_ABORT" envDefault:"false"`
}

func newRootCommand() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:   "taskd",
		Short: "Change-triggered background task runner",
		Long: `taskd turns node mutations into persisted tasks and drains them
under a distributed lock with retry, backoff and priority ordering.

Configuration is read from the environment; see --env-file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if len(envFiles) == 0 {
				return nil
			}
			return config.LoadEnv(envFiles...)
		},
	}

	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files loaded before the environment is read")

	root.AddCommand(
		newServeCommand(),
		newDrainCommand(),
		newMigrateCommand(),
	)
	return root
}
