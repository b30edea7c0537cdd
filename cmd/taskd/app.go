package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/nodetasks/pkg/config"
	"github.com/dmitrymomot/nodetasks/pkg/lock"
	"github.com/dmitrymomot/nodetasks/pkg/logger"
	"github.com/dmitrymomot/nodetasks/pkg/metrics"
	"github.com/dmitrymomot/nodetasks/pkg/mongo"
	"github.com/dmitrymomot/nodetasks/pkg/pg"
	"github.com/dmitrymomot/nodetasks/pkg/redis"
	"github.com/dmitrymomot/nodetasks/pkg/tasks"
	"github.com/dmitrymomot/nodetasks/pkg/webhook"
)

var errUnknownStore = errors.New("unknown task store")

// app is the wired pipeline shared by the subcommands
type app struct {
	cfg     AppConfig
	tasks   tasks.Config
	log     *slog.Logger
	metrics *metrics.Collector

	store      tasks.Store
	invoker    *tasks.Invoker
	runner     *tasks.Runner
	dispatcher *tasks.Dispatcher

	checks  []func(context.Context) error
	closers []func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	var cfg AppConfig
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	var taskCfg tasks.Config
	if err := config.Load(&taskCfg); err != nil {
		return nil, err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
	logger.SetAsDefault(log)

	a := &app{
		cfg:     cfg,
		tasks:   taskCfg,
		log:     log,
		metrics: metrics.NewCollector(),
		invoker: tasks.NewInvoker(),
	}
	if err := a.wire(ctx); err != nil {
		return nil, errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	if err := a.openStore(ctx); err != nil {
		return err
	}

	coord, err := a.openCoordinator(ctx)
	if err != nil {
		return err
	}

	var (
		rules     []tasks.TaskRule
		executors []tasks.Executor
	)
	var hookCfg webhook.Config
	if err := config.Load(&hookCfg); err != nil {
		return err
	}
	if hookCfg.Enabled() {
		rule, exec, err := webhook.NewFromConfig(hookCfg, a.log)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
		executors = append(executors, exec)
		a.log.Info("webhook notifications enabled", logger.TaskType(hookCfg.TaskType))
	}

	a.runner, err = tasks.NewRunner(a.store, coord, a.invoker, append(a.tasks.Options(),
		tasks.WithExecutors(executors...),
		tasks.WithRunnerLogger(a.log),
		tasks.WithRunnerObserver(a.metrics),
	)...)
	if err != nil {
		return err
	}

	policy := tasks.SyncContinue
	if a.cfg.SyncAbort {
		policy = tasks.SyncAbort
	}
	a.dispatcher, err = tasks.NewDispatcher(a.store, a.invoker,
		tasks.WithTaskRules(rules...),
		tasks.WithSyncFailurePolicy(policy),
		tasks.WithDispatcherLogger(a.log),
		tasks.WithDispatcherObserver(a.metrics),
	)
	return err
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store {
	case "memory":
		a.log.Warn("using the in-memory task store, tasks are lost on restart")
		a.store = tasks.NewMemoryStore()
		return nil

	case "mongo":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		client, err := mongo.New(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Disconnect)
		a.checks = append(a.checks, mongo.Healthcheck(client))

		store, err := mongo.NewTaskStore(client.Database(cfg.Database).Collection(cfg.TaskCollection))
		if err != nil {
			return err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		a.store = store
		return nil

	case "pg":
		pool, cfg, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		a.checks = append(a.checks, pg.Healthcheck(pool, cfg.TaskTable))

		store, err := pg.NewTaskStore(pool, pg.WithTaskTable(cfg.TaskTable))
		if err != nil {
			return err
		}
		a.store = store
		return nil

	default:
		return fmt.Errorf("%w: %q", errUnknownStore, a.cfg.Store)
	}
}

func (a *app) openCoordinator(ctx context.Context) (*lock.Coordinator, error) {
	var cfg lock.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	var client goredis.UniversalClient
	if cfg.Strategy == "redis" {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, err
		}
		c, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
		a.checks = append(a.checks, redis.Healthcheck(c))
		client = c
	}

	coord, err := lock.New(cfg, client, a.log)
	if err != nil {
		return nil, err
	}
	a.log.Info("lock coordinator ready",
		slog.String("strategy", cfg.Strategy),
		slog.Bool("coordinated", coord.Coordinated()))
	return coord, nil
}

// Close releases connections in reverse order of opening
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
