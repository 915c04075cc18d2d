package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/ports"
)

// Run is one execution attempt. It is safe for concurrent use.
type Run struct {
	o      *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	run   domain.ExecutionRun
	err   error
	timer ports.Timer
	final bool
	done  chan struct{}
}

type hookPicker = func(domain.RunHooks) func(context.Context, *domain.RunEvent)

var (
	onSubmit    hookPicker = func(h domain.RunHooks) func(context.Context, *domain.RunEvent) { return h.OnSubmit }
	onStatus    hookPicker = func(h domain.RunHooks) func(context.Context, *domain.RunEvent) { return h.OnStatus }
	onTerminal  hookPicker = func(h domain.RunHooks) func(context.Context, *domain.RunEvent) { return h.OnTerminal }
	onPollError hookPicker = func(h domain.RunHooks) func(context.Context, *domain.RunEvent) { return h.OnPollError }
	onStopped   hookPicker = func(h domain.RunHooks) func(context.Context, *domain.RunEvent) { return h.OnStopped }
)

// ID returns the client-side run id.
func (r *Run) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.ID
}

// Status returns the current status.
func (r *Run) Status() domain.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.Status
}

// Err returns the *domain.SubmitError or *domain.PollError that ended the run, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Snapshot returns a copy of the run.
func (r *Run) Snapshot() domain.ExecutionRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Done is closed once the run will not be polled again.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is final or ctx is done.
func (r *Run) Wait(ctx context.Context) (domain.ExecutionRun, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.snapshotLocked(), r.err
	case <-ctx.Done():
		return r.Snapshot(), ctx.Err()
	}
}

// Cancel stops polling. The remote run is not cancelled and may still be executing.
// It returns false if the run was already final.
func (r *Run) Cancel() bool {
	r.mu.Lock()
	if r.final {
		r.mu.Unlock()
		return false
	}
	r.run.Status = domain.RunStopped
	ev := r.finishLocked()
	r.mu.Unlock()

	r.o.logger.Info("polling stopped by client", "run_id", ev.RunID, "graph_id", ev.GraphID, "polls", ev.Poll)
	r.o.emit(r.ctx, onStopped, ev)
	return true
}

func (r *Run) submittedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.SubmittedAt
}

func (r *Run) scheduleLocked() {
	r.timer = r.o.sched.AfterFunc(r.o.interval, r.poll)
}

func (r *Run) poll() {
	r.mu.Lock()
	if r.final {
		r.mu.Unlock()
		return
	}
	r.run.Polls++
	n := r.run.Polls
	graphID, runID := r.run.GraphID, r.run.ID
	r.mu.Unlock()

	status, err := r.o.api.Status(r.ctx, graphID)
	if err == nil && status == nil {
		err = fmt.Errorf("empty status response")
	}

	r.mu.Lock()
	if r.final {
		// Cancelled while the request was in flight.
		r.mu.Unlock()
		return
	}
	if err != nil {
		r.run.Status = domain.RunPollError
		r.err = &domain.PollError{GraphID: graphID, RunID: runID, Poll: n, Cause: err}
		ev := r.finishLocked()
		r.mu.Unlock()

		r.o.logger.Warn("status poll failed", "run_id", runID, "graph_id", graphID, "poll", n, "err", err)
		r.o.emit(r.ctx, onPollError, ev)
		return
	}

	r.run.Status = status.Status
	if status.Nodes != nil {
		r.run.Nodes = cloneNodes(status.Nodes)
	}
	ev := r.eventLocked()

	switch {
	case status.Status.IsTerminal():
		end := r.finishLocked()
		r.mu.Unlock()

		r.o.emit(r.ctx, onStatus, ev)
		r.o.logger.Info("execution finished", "run_id", runID, "graph_id", graphID, "status", status.Status, "polls", n)
		r.o.emit(r.ctx, onTerminal, end)
	case r.o.maxPolls > 0 && n >= r.o.maxPolls:
		r.run.Status = domain.RunPollError
		r.err = &domain.PollError{GraphID: graphID, RunID: runID, Poll: n, Cause: fmt.Errorf("%w (%d)", ErrMaxPolls, r.o.maxPolls)}
		end := r.finishLocked()
		r.mu.Unlock()

		r.o.emit(r.ctx, onStatus, ev)
		r.o.logger.Warn("giving up on run", "run_id", runID, "graph_id", graphID, "polls", n)
		r.o.emit(r.ctx, onPollError, end)
	default:
		r.scheduleLocked()
		r.mu.Unlock()

		r.o.logger.Debug("execution in progress", "run_id", runID, "status", status.Status, "poll", n)
		r.o.emit(r.ctx, onStatus, ev)
	}
}

// finishLocked marks the run final exactly once: the timer is stopped, polling requests are
// abandoned and Done is closed.
func (r *Run) finishLocked() *domain.RunEvent {
	r.final = true
	r.run.FinishedAt = r.o.now()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.cancel()
	close(r.done)
	r.o.forget(r.run.ID)
	return r.eventLocked()
}

func (r *Run) eventLocked() *domain.RunEvent {
	return &domain.RunEvent{
		Timestamp: r.o.now(),
		RunID:     r.run.ID,
		GraphID:   r.run.GraphID,
		Status:    r.run.Status,
		Poll:      r.run.Polls,
		Nodes:     cloneNodes(r.run.Nodes),
		Err:       r.err,
	}
}

func (r *Run) snapshotLocked() domain.ExecutionRun {
	out := r.run
	out.Nodes = cloneNodes(r.run.Nodes)
	out.Errors = append([]string(nil), r.run.Errors...)
	out.ExecutionOrder = append([]string(nil), r.run.ExecutionOrder...)
	if r.run.Result != nil {
		out.Result = domain.CloneConfig(r.run.Result)
	}
	return out
}

func cloneNodes(in map[string]domain.NodeStatus) map[string]domain.NodeStatus {
	if in == nil {
		return nil
	}
	out := make(map[string]domain.NodeStatus, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
