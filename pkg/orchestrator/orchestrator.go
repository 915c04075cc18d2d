package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/clock"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/google/uuid"
)

// DefaultPollInterval is the delay between status polls.
const DefaultPollInterval = time.Second

// ErrMaxPolls stops a run that exhausted its poll budget without reaching a terminal status.
var ErrMaxPolls = errors.New("poll limit reached")

// Orchestrator launches runs against the execution API.
type Orchestrator struct {
	api      ports.ExecutionAPI
	sched    ports.Scheduler
	interval time.Duration
	maxPolls int
	hooks    []domain.RunHooks
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*Run
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithScheduler replaces the wall-clock scheduler (e.g. with clock.Manual in tests).
// A scheduler that also reports Now() drives run timestamps.
func WithScheduler(s ports.Scheduler) Option {
	return func(o *Orchestrator) {
		o.sched = s
		if n, ok := s.(interface{ Now() time.Time }); ok {
			o.now = n.Now
		}
	}
}

// WithInterval sets the poll interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithMaxPolls bounds the number of polls per run. Zero means unlimited.
func WithMaxPolls(n int) Option {
	return func(o *Orchestrator) {
		o.maxPolls = n
	}
}

// WithHooks registers run observers. It may be given more than once.
func WithHooks(hooks domain.RunHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = append(o.hooks, hooks)
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator.
func New(api ports.ExecutionAPI, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:      api,
		sched:    clock.Real{},
		interval: DefaultPollInterval,
		now:      time.Now,
		logger:   logging.NewNop(),
		active:   make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ChatInputs builds the initial inputs of a chat-triggered test run.
func ChatInputs(message string) map[string]any {
	return map[string]any{
		"test_data":    message,
		"trigger_type": "chat",
	}
}

// Execute submits a run of a saved graph. When the backend refuses the run, the returned
// Run is already failed and err is a *domain.SubmitError; no poll is ever made.
// Polling outlives ctx: stop it with Run.Cancel.
func (o *Orchestrator) Execute(ctx context.Context, graphID int64, inputs map[string]any) (*Run, error) {
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Run{
		o:      o,
		ctx:    pollCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		run: domain.ExecutionRun{
			ID:          uuid.NewString(),
			GraphID:     graphID,
			Status:      domain.RunSubmitting,
			SubmittedAt: o.now(),
		},
	}
	log := o.logger.With("run_id", r.run.ID, "graph_id", graphID)

	resp, err := o.api.Execute(ctx, graphID, inputs)
	if err == nil && resp == nil {
		err = errors.New("empty execute response")
	}
	if err == nil && !resp.Success {
		err = &domain.SubmitError{GraphID: graphID, Errors: resp.Errors}
	} else if err != nil {
		err = &domain.SubmitError{GraphID: graphID, Cause: err}
	}
	if err != nil {
		r.mu.Lock()
		r.run.Status = domain.RunFailed
		if resp != nil {
			r.run.Errors = resp.Errors
		}
		r.err = err
		ev := r.finishLocked()
		r.mu.Unlock()

		log.Warn("execution refused", "err", err)
		o.emit(ctx, onTerminal, ev)
		return r, err
	}

	o.mu.Lock()
	o.active[r.run.ID] = r
	o.mu.Unlock()

	r.mu.Lock()
	r.run.Status = domain.RunPending
	r.run.Result = resp.Result
	r.run.ExecutionOrder = resp.ExecutionOrder
	r.run.ExecutionTime = resp.ExecutionTime
	ev := r.eventLocked()
	r.scheduleLocked()
	r.mu.Unlock()

	log.Info("execution submitted", "interval", o.interval)
	o.emit(ctx, onSubmit, ev)
	return r, nil
}

// Active returns the runs still being polled, oldest first.
func (o *Orchestrator) Active() []*Run {
	o.mu.Lock()
	runs := make([]*Run, 0, len(o.active))
	for _, r := range o.active {
		runs = append(runs, r)
	}
	o.mu.Unlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].submittedAt().Before(runs[j].submittedAt())
	})
	return runs
}

// Get returns an active run by id.
func (o *Orchestrator) Get(id string) (*Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.active[id]
	return r, ok
}

// CancelAll stops polling every active run.
func (o *Orchestrator) CancelAll() {
	for _, r := range o.Active() {
		r.Cancel()
	}
}

func (o *Orchestrator) forget(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, id)
}

func (o *Orchestrator) emit(ctx context.Context, pick hookPicker, ev *domain.RunEvent) {
	for _, h := range o.hooks {
		if fn := pick(h); fn != nil {
			fn(ctx, ev)
		}
	}
}
