// Package httpserver runs the taskd HTTP surface (internal task endpoints,
// metrics and health probes) with graceful shutdown tied to a context.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
package httpserver
