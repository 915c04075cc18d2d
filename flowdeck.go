package flowdeck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/canvas"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/orchestrator"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/aretw0/flowdeck/pkg/registry"
	"github.com/aretw0/flowdeck/pkg/session"
)

// ErrUnsavedWorkflow is returned when running a session that was never saved.
var ErrUnsavedWorkflow = errors.New("workflow must be saved before it can run")

// Editor is the main entry point for embedding flowdeck.
// It wires the node type registry, the edit sessions and the execution orchestrator
// around one workflow backend.
type Editor struct {
	api      ports.WorkflowAPI
	registry *registry.Registry
	sessions *session.Manager
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger

	drafts       ports.DraftStore
	locker       ports.DistributedLocker
	runHooks     []domain.RunHooks
	sessionHooks []domain.SessionHooks
	scheduler    ports.Scheduler
	interval     time.Duration
	maxPolls     int
}

// Option configures the Editor.
type Option func(*Editor)

// WithDraftStore persists unsaved session state.
func WithDraftStore(store ports.DraftStore) Option {
	return func(e *Editor) {
		e.drafts = store
	}
}

// WithLocker serializes access to a workflow across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Editor) {
		e.locker = locker
	}
}

// WithLogger configures the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithRunHooks registers execution observers. It may be given more than once.
func WithRunHooks(hooks domain.RunHooks) Option {
	return func(e *Editor) {
		e.runHooks = append(e.runHooks, hooks)
	}
}

// WithSessionHooks registers edit session observers. It may be given more than once.
func WithSessionHooks(hooks domain.SessionHooks) Option {
	return func(e *Editor) {
		e.sessionHooks = append(e.sessionHooks, hooks)
	}
}

// WithScheduler replaces the wall-clock poll scheduler.
func WithScheduler(s ports.Scheduler) Option {
	return func(e *Editor) {
		e.scheduler = s
	}
}

// WithPollInterval sets the status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Editor) {
		e.interval = d
	}
}

// WithMaxPolls bounds the polls of a single run. Zero means unlimited.
func WithMaxPolls(n int) Option {
	return func(e *Editor) {
		e.maxPolls = n
	}
}

// New creates an Editor over the given backend. The node type catalog is not fetched
// until LoadNodeTypes is called.
func New(api ports.WorkflowAPI, opts ...Option) *Editor {
	e := &Editor{
		api:    api,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = registry.New(registry.WithLogger(e.logger))

	sessionOpts := []session.SessionOption{}
	if len(e.sessionHooks) > 0 {
		sessionOpts = append(sessionOpts, session.WithHooks(mergeSessionHooks(e.sessionHooks)))
	}
	managerOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithSessionOptions(sessionOpts...),
	}
	if e.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(api, e.registry, e.drafts, managerOpts...)

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(e.logger),
		orchestrator.WithInterval(e.interval),
		orchestrator.WithMaxPolls(e.maxPolls),
	}
	if e.scheduler != nil {
		orchOpts = append(orchOpts, orchestrator.WithScheduler(e.scheduler))
	}
	for _, h := range e.runHooks {
		orchOpts = append(orchOpts, orchestrator.WithHooks(h))
	}
	e.orch = orchestrator.New(api, orchOpts...)

	return e
}

// LoadNodeTypes fetches the node type catalog. Sessions can be opened before it resolves;
// node creation waits for it, and open sessions are re-annotated once it loads.
func (e *Editor) LoadNodeTypes(ctx context.Context) ([]domain.NodeTypeDefinition, error) {
	defs, err := e.registry.Load(ctx, e.api)
	if err != nil {
		return nil, fmt.Errorf("failed to load node types: %w", err)
	}
	e.sessions.Annotate()
	return defs, nil
}

// Open returns the edit session of a saved workflow.
func (e *Editor) Open(ctx context.Context, workflowID int64) (*session.Session, error) {
	return e.sessions.Open(ctx, workflowID)
}

// Start begins an edit session for a new, unsaved workflow.
func (e *Editor) Start(name, description string) *session.Session {
	return e.sessions.Start(name, description)
}

// Canvas binds a canvas adapter to a session.
func (e *Editor) Canvas(s *session.Session) *canvas.Adapter {
	return canvas.New(s, e.registry, canvas.WithLogger(e.logger))
}

// Save persists a session and discards its draft.
func (e *Editor) Save(ctx context.Context, s *session.Session) (*domain.SaveResult, error) {
	return e.sessions.Save(ctx, s)
}

// Run submits a chat-triggered test run of the session's saved workflow.
// Local edits that were not saved are not part of the run.
func (e *Editor) Run(ctx context.Context, s *session.Session, message string) (*orchestrator.Run, error) {
	st := s.State()
	if st.WorkflowID == 0 {
		return nil, ErrUnsavedWorkflow
	}
	if st.IsDirty() {
		e.logger.Warn("running saved version, local edits are not included", "workflow_id", st.WorkflowID)
	}
	return e.orch.Execute(ctx, st.WorkflowID, orchestrator.ChatInputs(message))
}

// Execute submits a run of a saved workflow with arbitrary inputs.
func (e *Editor) Execute(ctx context.Context, workflowID int64, inputs map[string]any) (*orchestrator.Run, error) {
	return e.orch.Execute(ctx, workflowID, inputs)
}

// API returns the workflow backend.
func (e *Editor) API() ports.WorkflowAPI {
	return e.api
}

// Registry returns the node type registry.
func (e *Editor) Registry() *registry.Registry {
	return e.registry
}

// Sessions returns the session manager.
func (e *Editor) Sessions() *session.Manager {
	return e.sessions
}

// Orchestrator returns the execution orchestrator.
func (e *Editor) Orchestrator() *orchestrator.Orchestrator {
	return e.orch
}

// Close stops polling every active run.
func (e *Editor) Close() {
	e.orch.CancelAll()
}

func mergeSessionHooks(all []domain.SessionHooks) domain.SessionHooks {
	if len(all) == 1 {
		return all[0]
	}
	fanout := func(pick func(domain.SessionHooks) func(*domain.SessionEvent)) func(*domain.SessionEvent) {
		return func(ev *domain.SessionEvent) {
			for _, h := range all {
				if fn := pick(h); fn != nil {
					fn(ev)
				}
			}
		}
	}
	return domain.SessionHooks{
		OnLoad:       fanout(func(h domain.SessionHooks) func(*domain.SessionEvent) { return h.OnLoad }),
		OnChange:     fanout(func(h domain.SessionHooks) func(*domain.SessionEvent) { return h.OnChange }),
		OnSave:       fanout(func(h domain.SessionHooks) func(*domain.SessionEvent) { return h.OnSave }),
		OnSaveError:  fanout(func(h domain.SessionHooks) func(*domain.SessionEvent) { return h.OnSaveError }),
		OnOrphanEdge: fanout(func(h domain.SessionHooks) func(*domain.SessionEvent) { return h.OnOrphanEdge }),
	}
}
