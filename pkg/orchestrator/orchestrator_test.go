package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/flowdeck/pkg/clock"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAPI replays a fixed status sequence per graph.
type scriptedAPI struct {
	mu        sync.Mutex
	submit    *domain.ExecuteResponse
	submitErr error
	script    map[int64][]domain.RunStatus
	failAt    map[int64]int
	polls     map[int64]int
	inputs    map[string]any
}

func newScriptedAPI() *scriptedAPI {
	return &scriptedAPI{
		submit: &domain.ExecuteResponse{Success: true, ExecutionOrder: []string{"1", "2"}},
		script: make(map[int64][]domain.RunStatus),
		failAt: make(map[int64]int),
		polls:  make(map[int64]int),
	}
}

func (a *scriptedAPI) Execute(ctx context.Context, id int64, inputs map[string]any) (*domain.ExecuteResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputs = inputs
	return a.submit, a.submitErr
}

func (a *scriptedAPI) Status(ctx context.Context, id int64) (*domain.WorkflowStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.polls[id]++
	n := a.polls[id]
	if at, ok := a.failAt[id]; ok && n == at {
		return nil, errors.New("connection reset")
	}
	script := a.script[id]
	st := script[min(n, len(script))-1]
	return &domain.WorkflowStatus{
		GraphID: id,
		Status:  st,
		Nodes:   map[string]domain.NodeStatus{"1": {NodeID: "1", Status: domain.NodeRunStatus(st)}},
	}, nil
}

func (a *scriptedAPI) NodeStatus(ctx context.Context, id int64, nodeID string) (*domain.NodeStatus, error) {
	return nil, domain.ErrNodeNotFound
}

func (a *scriptedAPI) pollCount(id int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.polls[id]
}

func newOrchestrator(api *scriptedAPI, opts ...orchestrator.Option) (*orchestrator.Orchestrator, *clock.Manual) {
	sched := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	opts = append([]orchestrator.Option{orchestrator.WithScheduler(sched)}, opts...)
	return orchestrator.New(api, opts...), sched
}

func TestExecute_RejectedRunNeverPolls(t *testing.T) {
	api := newScriptedAPI()
	api.submit = &domain.ExecuteResponse{Success: false, Errors: []string{"graph has no start node"}}

	var terminal []domain.RunStatus
	orch, sched := newOrchestrator(api, orchestrator.WithHooks(domain.RunHooks{
		OnTerminal: func(_ context.Context, e *domain.RunEvent) { terminal = append(terminal, e.Status) },
	}))

	run, err := orch.Execute(context.Background(), 7, nil)
	var submitErr *domain.SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Equal(t, []string{"graph has no start node"}, submitErr.Errors)
	assert.Equal(t, domain.RunFailed, run.Status())
	assert.Equal(t, []string{"graph has no start node"}, run.Snapshot().Errors)

	sched.Advance(10 * time.Second)
	assert.Equal(t, 0, api.pollCount(7))
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, []domain.RunStatus{domain.RunFailed}, terminal)

	select {
	case <-run.Done():
	default:
		t.Fatal("a rejected run must be done")
	}
}

func TestExecute_TransportFailureOnSubmit(t *testing.T) {
	api := newScriptedAPI()
	api.submitErr = errors.New("dial tcp: connection refused")
	orch, _ := newOrchestrator(api)

	run, err := orch.Execute(context.Background(), 7, nil)
	var submitErr *domain.SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, domain.RunFailed, run.Status())
	assert.Equal(t, 0, api.pollCount(7))
}

func TestExecute_EmptySubmitResponse(t *testing.T) {
	api := newScriptedAPI()
	api.submit = nil
	orch, sched := newOrchestrator(api)

	run, err := orch.Execute(context.Background(), 7, nil)
	var submitErr *domain.SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.ErrorContains(t, err, "empty execute response")
	assert.Equal(t, domain.RunFailed, run.Status())

	sched.Advance(10 * time.Second)
	assert.Equal(t, 0, api.pollCount(7))
}

func TestExecute_PollsUntilTerminal(t *testing.T) {
	api := newScriptedAPI()
	api.script[7] = []domain.RunStatus{domain.RunPending, domain.RunRunning, domain.RunRunning, domain.RunCompleted}

	var statuses []domain.RunStatus
	var terminals int
	orch, sched := newOrchestrator(api, orchestrator.WithHooks(domain.RunHooks{
		OnStatus:   func(_ context.Context, e *domain.RunEvent) { statuses = append(statuses, e.Status) },
		OnTerminal: func(_ context.Context, e *domain.RunEvent) { terminals++ },
	}))

	run, err := orch.Execute(context.Background(), 7, orchestrator.ChatInputs("hello"))
	require.NoError(t, err)
	assert.Equal(t, domain.RunPending, run.Status())
	assert.Equal(t, map[string]any{"test_data": "hello", "trigger_type": "chat"}, api.inputs)

	sched.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, api.pollCount(7), "first poll waits one interval")

	sched.Advance(time.Minute)
	assert.Equal(t, 4, api.pollCount(7))
	assert.Equal(t, []domain.RunStatus{domain.RunPending, domain.RunRunning, domain.RunRunning, domain.RunCompleted}, statuses)
	assert.Equal(t, 1, terminals)
	assert.Equal(t, 0, sched.Pending(), "no poll is scheduled after a terminal status")

	snap, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, snap.Status)
	assert.Equal(t, 4, snap.Polls)
	assert.Equal(t, domain.NodeCompleted, snap.Nodes["1"].Status)
	assert.Equal(t, []string{"1", "2"}, snap.ExecutionOrder)
	assert.False(t, run.Cancel(), "a finished run cannot be cancelled")
}

func TestExecute_PollErrorStopsPolling(t *testing.T) {
	api := newScriptedAPI()
	api.script[7] = []domain.RunStatus{domain.RunPending, domain.RunRunning}
	api.failAt[7] = 2

	var pollErrs int
	orch, sched := newOrchestrator(api, orchestrator.WithHooks(domain.RunHooks{
		OnPollError: func(_ context.Context, e *domain.RunEvent) { pollErrs++ },
	}))
	run, err := orch.Execute(context.Background(), 7, nil)
	require.NoError(t, err)

	sched.Advance(time.Minute)
	assert.Equal(t, 2, api.pollCount(7))
	assert.Equal(t, domain.RunPollError, run.Status())
	assert.Equal(t, 1, pollErrs)

	var pollErr *domain.PollError
	require.ErrorAs(t, run.Err(), &pollErr)
	assert.Equal(t, 2, pollErr.Poll)
	assert.Equal(t, run.ID(), pollErr.RunID)
}

func TestExecute_MaxPolls(t *testing.T) {
	api := newScriptedAPI()
	api.script[7] = []domain.RunStatus{domain.RunRunning}
	orch, sched := newOrchestrator(api, orchestrator.WithMaxPolls(3))

	run, err := orch.Execute(context.Background(), 7, nil)
	require.NoError(t, err)
	sched.Advance(time.Hour)

	assert.Equal(t, 3, api.pollCount(7))
	assert.Equal(t, domain.RunPollError, run.Status())
	assert.ErrorIs(t, run.Err(), orchestrator.ErrMaxPolls)
}

func TestRun_CancelStopsLocalPolling(t *testing.T) {
	api := newScriptedAPI()
	api.script[7] = []domain.RunStatus{domain.RunRunning}

	var stopped int
	orch, sched := newOrchestrator(api, orchestrator.WithInterval(500*time.Millisecond), orchestrator.WithHooks(domain.RunHooks{
		OnStopped: func(_ context.Context, e *domain.RunEvent) { stopped++ },
	}))
	run, err := orch.Execute(context.Background(), 7, nil)
	require.NoError(t, err)

	sched.Advance(time.Second)
	assert.Equal(t, 2, api.pollCount(7))
	_, ok := orch.Get(run.ID())
	assert.True(t, ok)

	assert.True(t, run.Cancel())
	assert.False(t, run.Cancel())
	sched.Advance(time.Minute)

	assert.Equal(t, 2, api.pollCount(7))
	assert.Equal(t, domain.RunStopped, run.Status())
	assert.Equal(t, 1, stopped)
	assert.Empty(t, orch.Active())
}

func TestExecute_ConcurrentRunsAreIndependent(t *testing.T) {
	api := newScriptedAPI()
	api.script[7] = []domain.RunStatus{domain.RunRunning}
	orch, sched := newOrchestrator(api)

	first, err := orch.Execute(context.Background(), 7, nil)
	require.NoError(t, err)
	second, err := orch.Execute(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Len(t, orch.Active(), 2)

	sched.Advance(2 * time.Second)
	first.Cancel()
	sched.Advance(2 * time.Second)

	assert.Equal(t, domain.RunStopped, first.Status())
	assert.Equal(t, domain.RunRunning, second.Status())
	assert.Equal(t, 2, first.Snapshot().Polls)
	assert.Equal(t, 4, second.Snapshot().Polls)

	orch.CancelAll()
	assert.Equal(t, domain.RunStopped, second.Status())
}

func TestRun_WaitHonorsContext(t *testing.T) {
	api := newScriptedAPI()
	api.script[7] = []domain.RunStatus{domain.RunRunning}
	orch, _ := newOrchestrator(api)
	run, err := orch.Execute(context.Background(), 7, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := run.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunPending, snap.Status)
}

func TestExecute_RealScheduler(t *testing.T) {
	api := newScriptedAPI()
	api.script[7] = []domain.RunStatus{domain.RunRunning, domain.RunFailed}
	orch := orchestrator.New(api, orchestrator.WithInterval(time.Millisecond))

	run, err := orch.Execute(context.Background(), 7, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := run.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, snap.Status)
	assert.Equal(t, 2, snap.Polls)
}
