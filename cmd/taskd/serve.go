package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/nodetasks/pkg/config"
	"github.com/dmitrymomot/nodetasks/pkg/httpserver"
	"github.com/dmitrymomot/nodetasks/pkg/logger"
	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the drain loop and the internal HTTP endpoints",
		Long: `serve drains due tasks on every invoker signal and on a periodic
tick, and exposes:

  POST /internal/mutations     lifecycle signals from the CRUD layer
  POST /internal/tasks/run     one synchronous runner cycle
  POST /internal/tasks/trigger fire-and-forget runner trigger
  GET  /metrics                Prometheus metrics
  GET  /healthz, /readyz       liveness and readiness probes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			a.log.Error("failed to close connections", logger.Error(err))
		}
	}()

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(a.log))

	loop, err := tasks.NewLoop(a.runner,
		tasks.WithPollInterval(a.tasks.PollInterval),
		tasks.WithLoopLogger(a.log),
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(loop.Run(ctx))
	g.Go(func() error {
		return srv.Run(ctx, a.router())
	})
	return g.Wait()
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthCheckHandler(a.log))
	r.Get("/readyz", httpserver.HealthCheckHandler(a.log, a.checks...))
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	tasks.RegisterRunnerRoutes(r, a.runner, a.log)
	tasks.RegisterMutationRoutes(r, a.dispatcher, a.log)
	return r
}
