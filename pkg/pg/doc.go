// Package pg connects to PostgreSQL with pgx and provides TaskStore, the
// relational implementation of tasks.Store. The task table is created by
// embedded goose migrations applied with Migrate.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//	store, _ := pg.NewTaskStore(pool, pg.WithTaskTable(cfg.TaskTable))
package pg
