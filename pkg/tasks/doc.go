// Package tasks implements the change-triggered background task pipeline: it
// watches node mutations, derives follow-up tasks through pluggable rules,
// persists them, and drains them asynchronously under a distributed lock.
//
// The package is organised around a few components:
//
//   - Dispatcher: receives the six lifecycle signals of the CRUD layer
//   - TaskRule: turns a committed mutation into zero or more tasks
//   - SyncRule: runs a side effect before a mutation commits
//   - Store: persists task records (MemoryStore here; MongoDB and
//     PostgreSQL implementations live in pkg/mongo and pkg/pg)
//   - Executor: performs the work for one task type
//   - Invoker: coalescing fire-and-forget trigger of the runner
//   - Runner: locks, drains a batch, reschedules or deletes each task
//   - Loop: goroutine that runs the runner on signals and on a tick
//
// # Flow
//
//	CRUD write → Dispatcher → TaskRules → Store.CreateTasks → Invoker
//	           → Loop → Runner (lock, drain ≤ BatchSize, execute) → Invoker
//
// Task creation is not lock protected, so the same conceptual event may
// produce duplicate tasks across instances. Executors must be idempotent.
//
// # Usage
//
//	store := tasks.NewMemoryStore()
//	invoker := tasks.NewInvoker()
//	coord, _ := lock.NewCoordinator(lock.Uncoordinated())
//
//	runner, _ := tasks.NewRunner(store, coord, invoker,
//		tasks.WithExecutors(tasks.NewExecutor("reindex", reindexNode)),
//	)
//	dispatcher, _ := tasks.NewDispatcher(store, invoker,
//		tasks.WithTaskRules(&reindexRule{}),
//	)
//	loop, _ := tasks.NewLoop(runner, tasks.WithPollInterval(time.Minute))
//
//	g.Go(loop.Run(ctx))
//
//	// in the CRUD layer, after the write commits
//	_, _ = dispatcher.Updated(ctx, before, after, nil)
//
// # Retry policy
//
// A failed task is rescheduled 10 minutes ahead while it has failed at most
// three times and one hour ahead afterwards. Skipped tasks follow the same
// policy. Executors may override either date; an override that errors falls
// back to the default. There is no dead-letter queue: a task whose type has
// no executor keeps being retried.
package tasks
