package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/nodetasks/pkg/async"
	"github.com/dmitrymomot/nodetasks/pkg/logger"
)

// HealthCheckHandler answers liveness and readiness probes. Without checks
// it always answers 200 "ALIVE". With checks it answers 200 "READY" when all
// pass and 503 "NOT_READY" otherwise. Checks run concurrently and a panicking
// check counts as a failure.
func HealthCheckHandler(log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
			return
		}

		futures := make([]*async.Future[struct{}], len(checks))
		for i, check := range checks {
			futures[i] = async.Async(r.Context(), check, func(ctx context.Context, check func(context.Context) error) (struct{}, error) {
				return struct{}{}, check(ctx)
			})
		}

		if _, err := async.WaitAll(futures...); err != nil {
			log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
