package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/nodetasks/pkg/config"
	"github.com/dmitrymomot/nodetasks/pkg/logger"
	"github.com/dmitrymomot/nodetasks/pkg/pg"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL task schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg AppConfig
			if err := config.Load(&cfg); err != nil {
				return err
			}
			log := logger.New(logger.WithEnvironment(cfg.Env, cfg.Name))

			pool, pgCfg, err := openPostgres(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pg.Migrate(cmd.Context(), pool, pgCfg, log); err != nil {
				return err
			}
			log.Info("task schema is up to date")
			return nil
		},
	}
}

func openPostgres(ctx context.Context) (*pgxpool.Pool, pg.Config, error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, cfg, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	return pool, cfg, nil
}
