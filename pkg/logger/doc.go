// Package logger builds *slog.Logger instances and provides attribute
// helpers that keep key names consistent across the task pipeline.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, cfg.Name),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "task completed",
//		logger.TaskID(task.ID),
//		logger.TaskType(task.Type),
//		logger.Duration(time.Since(start)),
//	)
//
// Error and TaskID return an empty attribute for zero values, so they can be
// passed unconditionally.
package logger
