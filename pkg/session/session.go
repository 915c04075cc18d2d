package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/mapper"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/google/uuid"
)

// Backend is the part of the workflow API an edit session talks to.
type Backend interface {
	ports.WorkflowReader
	ports.WorkflowWriter
}

// Session owns the state of one workflow being edited.
// Transitions are serialized by a mutex; network calls happen outside it.
type Session struct {
	mu       sync.Mutex
	state    State
	revision uint64
	loaded   bool

	key     string // draft key for workflows that were never saved
	alloc   *mapper.Allocator
	catalog Catalog
	backend Backend
	saving  atomic.Bool

	listenersMu sync.Mutex
	listeners   map[int]func(State)
	nextListen  int

	hooks  domain.SessionHooks
	logger *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger configures the structured logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.SessionHooks) SessionOption {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// WithAllocator replaces the temporary id allocator (e.g. when resuming a draft).
func WithAllocator(alloc *mapper.Allocator) SessionOption {
	return func(s *Session) {
		s.alloc = alloc
	}
}

// New creates a session with no workflow. Call Load to open an existing workflow or
// Start to begin a new one.
func New(backend Backend, catalog Catalog, opts ...SessionOption) *Session {
	s := &Session{
		key:       uuid.NewString(),
		alloc:     mapper.NewAllocator(),
		catalog:   catalog,
		backend:   backend,
		listeners: make(map[int]func(State)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key identifies the session's draft.
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.DraftKey(s.state.WorkflowID, s.key)
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Loaded reports whether the session holds a workflow.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Allocator returns the session's temporary id allocator.
func (s *Session) Allocator() *mapper.Allocator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc
}

// Start begins editing a new, unsaved workflow.
func (s *Session) Start(name, description string) {
	s.mu.Lock()
	s.state = NewState(name, description)
	s.loaded = true
	s.revision++
	st := s.state
	s.mu.Unlock()

	s.emit(s.hooks.OnLoad, &domain.SessionEvent{Type: domain.SessionLoaded, Op: "start"})
	s.notify(st)
}

// Load fetches a workflow and replaces the session state with a clean copy of it.
func (s *Session) Load(ctx context.Context, id int64) error {
	g, err := s.backend.GetWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("load workflow %d: %w", id, err)
	}
	s.install(g, "load")
	return nil
}

// Reload re-fetches the current workflow, discarding local changes.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	id, loaded := s.state.WorkflowID, s.loaded
	s.mu.Unlock()
	if !loaded || id == 0 {
		return domain.ErrSessionNotLoaded
	}
	return s.Load(ctx, id)
}

func (s *Session) install(g *domain.PersistedGraph, op string) {
	nodes, edges, orphans := mapper.LoadToVisual(g, s.catalogIfLoaded(), s.alloc)

	s.mu.Lock()
	s.state = loadedState(g.GraphSummary, nodes, edges)
	s.loaded = true
	s.revision++
	st := s.state
	s.mu.Unlock()

	for i := range orphans {
		orphan := orphans[i]
		s.logger.Warn("edge references a node missing from the graph",
			"workflow_id", g.ID, "edge_id", orphan.EdgeID.String(),
			"endpoint", orphan.Endpoint, "missing", orphan.Missing.String())
		s.emit(s.hooks.OnOrphanEdge, &domain.SessionEvent{Type: domain.SessionOrphanEdge, Op: op, Err: &orphan})
	}
	s.emit(s.hooks.OnLoad, &domain.SessionEvent{Type: domain.SessionLoaded, Op: op})
	s.notify(st)
}

func (s *Session) catalogIfLoaded() mapper.Lookup {
	if s.catalog == nil || !s.catalog.IsLoaded() {
		return nil
	}
	return s.catalog
}

// Annotate re-annotates node ports once the catalog resolved. It is not an edit.
func (s *Session) Annotate() {
	lookup := s.catalogIfLoaded()
	if lookup == nil {
		return
	}
	s.mu.Lock()
	s.state = s.state.withGraph()
	s.state.Graph.Nodes = mapper.Annotate(s.state.Graph.Nodes, lookup)
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

// Apply runs a transition under the session lock. A failed transition leaves the state unchanged.
func (s *Session) Apply(op string, fn func(State) (State, error)) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return domain.ErrSessionNotLoaded
	}
	next, err := fn(s.state)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("transition rejected", "op", op, "error", err)
		return err
	}
	s.state = next
	s.revision++
	dirty := next.IsDirty()
	s.mu.Unlock()

	s.emit(s.hooks.OnChange, &domain.SessionEvent{Type: domain.SessionChanged, Op: op, Dirty: dirty})
	s.notify(next)
	return nil
}

// AddNode creates a node of the given type.
func (s *Session) AddNode(nodeType string, pos domain.Position) (domain.NodeID, error) {
	var id domain.NodeID
	err := s.Apply("add_node", func(st State) (State, error) {
		next, newID, err := AddNode(st, s.catalog, s.alloc, nodeType, pos)
		id = newID
		return next, err
	})
	return id, err
}

// UpdateNodeConfig merges a config patch into a node.
func (s *Session) UpdateNodeConfig(id domain.NodeID, patch map[string]any) error {
	return s.Apply("update_config", func(st State) (State, error) {
		return UpdateNodeConfig(st, id, patch)
	})
}

// SetConfigField stores a JSON-typed config field from its text.
func (s *Session) SetConfigField(id domain.NodeID, key, raw string) error {
	return s.Apply("set_config_field", func(st State) (State, error) {
		return SetConfigField(st, id, key, raw)
	})
}

// SetFieldsToAdd replaces the fields_to_add mapping of a node.
func (s *Session) SetFieldsToAdd(id domain.NodeID, rows [][2]string) error {
	return s.Apply("set_fields_to_add", func(st State) (State, error) {
		return SetFieldsToAdd(st, id, rows)
	})
}

// UpdateNodeLabel renames a node.
func (s *Session) UpdateNodeLabel(id domain.NodeID, label string) error {
	return s.Apply("update_label", func(st State) (State, error) {
		return UpdateNodeLabel(st, id, label)
	})
}

// MoveNode repositions a node.
func (s *Session) MoveNode(id domain.NodeID, pos domain.Position) error {
	return s.Apply("move_node", func(st State) (State, error) {
		return MoveNode(st, id, pos)
	})
}

// DeleteNode removes a node and its edges.
func (s *Session) DeleteNode(id domain.NodeID) error {
	return s.Apply("delete_node", func(st State) (State, error) {
		return DeleteNode(st, id)
	})
}

// Connect adds an edge.
func (s *Session) Connect(source, target domain.NodeID, sourceHandle, targetHandle *string) (domain.NodeID, error) {
	var id domain.NodeID
	err := s.Apply("connect", func(st State) (State, error) {
		next, newID, err := Connect(st, s.alloc, source, target, sourceHandle, targetHandle)
		id = newID
		return next, err
	})
	return id, err
}

// Disconnect removes an edge.
func (s *Session) Disconnect(edgeID domain.NodeID) error {
	return s.Apply("disconnect", func(st State) (State, error) {
		return Disconnect(st, edgeID)
	})
}

// ApplyEdgeChanges applies a bulk edge change from the canvas.
func (s *Session) ApplyEdgeChanges(changes []EdgeChange) error {
	return s.Apply("edge_changes", func(st State) (State, error) {
		return ApplyEdgeChanges(st, changes)
	})
}

// ApplyNodeChanges applies a bulk node change from the canvas.
func (s *Session) ApplyNodeChanges(changes []NodeChange) error {
	return s.Apply("node_changes", func(st State) (State, error) {
		return ApplyNodeChanges(st, changes)
	})
}

// Select marks a node as selected.
func (s *Session) Select(id domain.NodeID) error {
	return s.Apply("select", func(st State) (State, error) {
		return Select(st, id)
	})
}

// ClearSelection deselects any node.
func (s *Session) ClearSelection() error {
	return s.Apply("clear_selection", func(st State) (State, error) {
		return ClearSelection(st), nil
	})
}

// Save sends the local graph as a change set. Only one save may be in flight.
// A failed save leaves the state untouched. A successful save reloads the workflow,
// so the returned graph becomes the new clean snapshot.
func (s *Session) Save(ctx context.Context) (*domain.SaveResult, error) {
	if !s.saving.CompareAndSwap(false, true) {
		return nil, domain.ErrSaveInProgress
	}
	defer s.saving.Store(false)

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotLoaded
	}
	st := s.state
	rev := s.revision
	s.mu.Unlock()

	payload, err := mapper.SaveFromVisual(st.Meta(), st.Graph.Nodes, st.Graph.Edges)
	if err != nil {
		s.saveFailed(st, err)
		return nil, err
	}

	var res *domain.SaveResult
	if st.WorkflowID == 0 {
		res, err = s.backend.CreateWorkflow(ctx, payload)
	} else {
		res, err = s.backend.UpdateWorkflow(ctx, st.WorkflowID, payload)
	}
	if err == nil && (res == nil || !res.Success) {
		msg := "save rejected"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		err = errors.New(msg)
	}
	if err != nil {
		s.saveFailed(st, err)
		return nil, fmt.Errorf("save workflow: %w", err)
	}

	graphID := res.GraphID
	if graphID == 0 {
		graphID = st.WorkflowID
	}
	g, err := s.backend.GetWorkflow(ctx, graphID)
	if err != nil {
		// The save went through: point the session at the stored workflow so the next
		// save updates it instead of creating a duplicate.
		s.mu.Lock()
		s.state.WorkflowID = graphID
		s.mu.Unlock()
		s.logger.Warn("workflow saved but reload failed", "workflow_id", graphID, "error", err)
		return res, fmt.Errorf("reload after save: %w", err)
	}

	s.mu.Lock()
	superseded := s.revision != rev
	s.mu.Unlock()
	if superseded {
		s.logger.Warn("edits made during save were replaced by the saved workflow", "workflow_id", graphID)
	}

	s.install(g, "save")
	s.emit(s.hooks.OnSave, &domain.SessionEvent{Type: domain.SessionSaved, WorkflowID: graphID})
	s.logger.Info("workflow saved", "workflow_id", graphID, "vertices", len(payload.Vertices), "edges", len(payload.Edges))
	return res, nil
}

func (s *Session) saveFailed(st State, err error) {
	s.logger.Warn("workflow save failed", "workflow_id", st.WorkflowID, "error", err)
	s.emit(s.hooks.OnSaveError, &domain.SessionEvent{
		Type: domain.SessionSaveFailed, WorkflowID: st.WorkflowID, Dirty: st.IsDirty(), Err: err,
	})
}

// Draft captures the session so it can be restored later.
func (s *Session) Draft() *domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.Clone()
	return &domain.Draft{
		Key:         domain.DraftKey(st.WorkflowID, s.key),
		WorkflowID:  st.WorkflowID,
		Name:        st.Name,
		Description: st.Description,
		Graph:       st.Graph,
		Snapshot:    st.Snapshot,
		NextTemp:    s.alloc.Peek(),
		UpdatedAt:   time.Now().UTC(),
	}
}

// Restore replaces the session state with a draft. Ports are re-annotated from the catalog.
func (s *Session) Restore(d *domain.Draft) {
	lookup := s.catalogIfLoaded()
	st := State{
		WorkflowID:  d.WorkflowID,
		Name:        d.Name,
		Description: d.Description,
		Graph:       d.Graph.Clone(),
		Snapshot:    d.Snapshot.Clone(),
	}
	if lookup != nil {
		st.Graph.Nodes = mapper.Annotate(st.Graph.Nodes, lookup)
	}

	s.mu.Lock()
	s.alloc = mapper.ResumeAllocator(d.NextTemp)
	for _, n := range st.Graph.Nodes {
		s.alloc.Observe(n.ID)
	}
	for _, e := range st.Graph.Edges {
		s.alloc.Observe(e.ID)
	}
	if d.WorkflowID == 0 {
		if key, ok := strings.CutPrefix(d.Key, "new-"); ok {
			s.key = key
		}
	}
	s.state = st
	s.loaded = true
	s.revision++
	s.mu.Unlock()

	s.emit(s.hooks.OnLoad, &domain.SessionEvent{Type: domain.SessionLoaded, Op: "restore", Dirty: st.IsDirty()})
	s.notify(st)
}

// Subscribe registers a listener called after every state change.
// It returns a function that removes the listener.
func (s *Session) Subscribe(fn func(State)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) notify(st State) {
	s.listenersMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()
	for _, fn := range fns {
		fn(st.Clone())
	}
}

func (s *Session) emit(hook func(*domain.SessionEvent), ev *domain.SessionEvent) {
	if hook == nil {
		return
	}
	ev.Timestamp = time.Now()
	if ev.WorkflowID == 0 {
		s.mu.Lock()
		ev.WorkflowID = s.state.WorkflowID
		s.mu.Unlock()
	}
	hook(ev)
}
