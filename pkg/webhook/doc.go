// Package webhook delivers task notifications to an HTTP endpoint.
//
// ChangeRule turns node mutations into tasks and Executor posts each task as a
// JSON Notification, optionally signed with HMAC-SHA256:
//
//	rule, _ := webhook.NewChangeRule("webhook.notify", []string{"title", "status"})
//	exec, _ := webhook.NewExecutor("webhook.notify", "https://hooks.example.com/cms",
//		webhook.WithSecret(secret),
//		webhook.WithCircuitBreaker(webhook.NewCircuitBreaker(5, 1, 5*time.Minute)),
//	)
//
//	dispatcher, _ := tasks.NewDispatcher(store, invoker, tasks.WithTaskRules(rule))
//	runner, _ := tasks.NewRunner(store, coord, invoker, tasks.WithExecutors(exec))
//
// Each delivery is a single attempt. Failed tasks stay in the store and are
// retried by the runner; WithBackoff replaces its default retry dates. While
// the circuit breaker is open, tasks are skipped until RetryAt.
//
// # Signatures
//
// Signed requests carry X-Webhook-Signature, X-Webhook-Timestamp and
// X-Webhook-ID. The ID is the task id, so retries of one task share it and
// receivers can deduplicate. Receivers check a request with ParseSignature
// and Verify.
package webhook
