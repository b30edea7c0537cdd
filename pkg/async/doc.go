// Package async runs functions in goroutines and collects their results
// through typed futures.
//
//	f := async.Async(ctx, probe, func(ctx context.Context, p Probe) (Status, error) {
//		return p.Check(ctx)
//	})
//	status, err := f.Await()
//
// WaitAll gathers a slice of futures, keeping the successful results and
// joining the errors of the failed ones.
package async
