/*
Package orchestrator submits workflow executions and tracks them by polling.

Each Execute call creates a Run with its own id, timer and lock. A run that the backend
accepted is polled at a fixed interval until the backend reports a terminal status, a poll
fails, or the caller cancels it. Cancelling only stops local polling: the backend has no
cancel endpoint, so the remote run may keep executing.

	orch := orchestrator.New(api, orchestrator.WithInterval(time.Second))
	run, err := orch.Execute(ctx, graphID, orchestrator.ChatInputs("hello"))
	if err != nil {
		return err // *domain.SubmitError
	}
	final, err := run.Wait(ctx)
*/
package orchestrator
