package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
)

// DefaultStatusScript is the sequence of statuses a run reports, one per status call.
var DefaultStatusScript = []domain.RunStatus{domain.RunPending, domain.RunRunning, domain.RunCompleted}

// Backend implements ports.WorkflowAPI in memory.
// Unsaved vertices are resolved through their temp_ref, so a payload may connect
// vertices that do not have durable ids yet. Safe for concurrent use.
type Backend struct {
	mu       sync.RWMutex
	types    []domain.NodeTypeDefinition
	graphs   map[int64]*domain.PersistedGraph
	runs     map[int64]*run
	script   []domain.RunStatus
	nextID   int64
	nextElem int64
	now      func() time.Time
	logger   *slog.Logger
}

type run struct {
	order  []string
	inputs map[string]any
	polls  int
	status domain.WorkflowStatus
}

// BackendOption configures the Backend.
type BackendOption func(*Backend)

// WithNodeTypes replaces the served catalog.
func WithNodeTypes(defs []domain.NodeTypeDefinition) BackendOption {
	return func(b *Backend) {
		b.types = defs
	}
}

// WithStatusScript sets the statuses reported by consecutive status calls. The last one repeats.
func WithStatusScript(statuses ...domain.RunStatus) BackendOption {
	return func(b *Backend) {
		b.script = statuses
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) BackendOption {
	return func(b *Backend) {
		b.now = now
	}
}

// WithBackendLogger configures the logger.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = logger
	}
}

// NewBackend creates an empty in-memory backend serving DefaultNodeTypes.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		types:    DefaultNodeTypes(),
		graphs:   make(map[int64]*domain.PersistedGraph),
		runs:     make(map[int64]*run),
		script:   DefaultStatusScript,
		nextID:   1,
		nextElem: 1,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NodeTypes returns the catalog.
func (b *Backend) NodeTypes(ctx context.Context) ([]domain.NodeTypeDefinition, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]domain.NodeTypeDefinition(nil), b.types...), nil
}

// ListWorkflows returns every workflow ordered by id.
func (b *Backend) ListWorkflows(ctx context.Context) ([]domain.GraphSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.GraphSummary, 0, len(b.graphs))
	for _, g := range b.graphs {
		out = append(out, g.GraphSummary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetWorkflow returns a copy of a stored workflow.
func (b *Backend) GetWorkflow(ctx context.Context, id int64) (*domain.PersistedGraph, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	g, ok := b.graphs[id]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, domain.ErrWorkflowNotFound)
	}
	return cloneGraph(g), nil
}

// GetWorkflowMetadata returns the summary of a stored workflow.
func (b *Backend) GetWorkflowMetadata(ctx context.Context, id int64) (*domain.GraphSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	g, ok := b.graphs[id]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, domain.ErrWorkflowNotFound)
	}
	summary := g.GraphSummary
	return &summary, nil
}

// CreateWorkflow stores a new workflow.
func (b *Backend) CreateWorkflow(ctx context.Context, payload domain.WorkflowSavePayload) (*domain.SaveResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g := &domain.PersistedGraph{GraphSummary: domain.GraphSummary{
		ID:        b.nextID,
		CreatedAt: b.timestamp(),
	}}
	if err := b.apply(g, payload); err != nil {
		return &domain.SaveResult{Success: false, Message: err.Error()}, nil
	}
	b.nextID++
	b.graphs[g.ID] = g
	b.logger.Debug("workflow created", "graph_id", g.ID, "vertices", len(g.Vertices), "edges", len(g.Edges))
	return &domain.SaveResult{Success: true, GraphID: g.ID, Message: "Workflow created successfully"}, nil
}

// UpdateWorkflow replaces the content of a workflow. Vertices and edges missing from the
// payload are deleted.
func (b *Backend) UpdateWorkflow(ctx context.Context, id int64, payload domain.WorkflowSavePayload) (*domain.SaveResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.graphs[id]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, domain.ErrWorkflowNotFound)
	}
	g := cloneGraph(current)
	if err := b.apply(g, payload); err != nil {
		return &domain.SaveResult{Success: false, GraphID: id, Message: err.Error()}, nil
	}
	b.graphs[id] = g
	b.logger.Debug("workflow updated", "graph_id", id, "vertices", len(g.Vertices), "edges", len(g.Edges))
	return &domain.SaveResult{Success: true, GraphID: id, Message: "Workflow updated successfully"}, nil
}

// DeleteWorkflow removes a workflow and its run.
func (b *Backend) DeleteWorkflow(ctx context.Context, id int64) (*domain.DeleteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.graphs[id]; !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, domain.ErrWorkflowNotFound)
	}
	delete(b.graphs, id)
	delete(b.runs, id)
	return &domain.DeleteResult{Success: true, Message: "Workflow deleted successfully"}, nil
}

// apply replaces g's content with the payload, assigning ids to new vertices and edges.
// The caller holds the write lock.
func (b *Backend) apply(g *domain.PersistedGraph, payload domain.WorkflowSavePayload) error {
	known := make(map[int64]struct{}, len(g.Vertices))
	for _, v := range g.Vertices {
		known[*v.ID] = struct{}{}
	}
	knownEdges := make(map[int64]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		knownEdges[*e.ID] = struct{}{}
	}

	next := b.nextElem
	alloc := func() int64 {
		id := next
		next++
		return id
	}

	refs := make(map[int64]int64, len(payload.Vertices))
	vertices := make([]domain.PersistedVertex, 0, len(payload.Vertices))
	for i, v := range payload.Vertices {
		v = cloneVertex(v)
		switch {
		case v.ID != nil:
			if _, ok := known[*v.ID]; !ok {
				return fmt.Errorf("vertex %d does not belong to this workflow", *v.ID)
			}
			refs[*v.ID] = *v.ID
		default:
			id := alloc()
			if v.TempRef != nil {
				if _, dup := refs[*v.TempRef]; dup {
					return fmt.Errorf("vertex %d: duplicate temp_ref %d", i, *v.TempRef)
				}
				refs[*v.TempRef] = id
			}
			v.ID = domain.Int64Ptr(id)
		}
		v.TempRef = nil
		vertices = append(vertices, v)
	}

	edges := make([]domain.PersistedEdge, 0, len(payload.Edges))
	for i, e := range payload.Edges {
		e = cloneEdge(e)
		src, ok := refs[e.SourceID]
		if !ok {
			return fmt.Errorf("edge %d: unknown source vertex %d", i, e.SourceID)
		}
		tgt, ok := refs[e.TargetID]
		if !ok {
			return fmt.Errorf("edge %d: unknown target vertex %d", i, e.TargetID)
		}
		e.SourceID, e.TargetID = src, tgt
		if e.ID != nil {
			if _, ok := knownEdges[*e.ID]; !ok {
				e.ID = nil
			}
		}
		if e.ID == nil {
			e.ID = domain.Int64Ptr(alloc())
		}
		if e.Type == "" {
			e.Type = domain.EdgeTypeDefault
		}
		edges = append(edges, e)
	}

	b.nextElem = next
	g.Name = payload.Name
	g.Description = payload.Description
	g.UpdatedAt = b.timestamp()
	g.Vertices = vertices
	g.Edges = edges
	return nil
}

func (b *Backend) timestamp() string {
	return b.now().UTC().Format(time.RFC3339)
}

func cloneGraph(g *domain.PersistedGraph) *domain.PersistedGraph {
	out := &domain.PersistedGraph{GraphSummary: g.GraphSummary}
	if g.Properties != nil {
		out.Properties = domain.CloneConfig(g.Properties)
	}
	out.Vertices = make([]domain.PersistedVertex, len(g.Vertices))
	for i, v := range g.Vertices {
		out.Vertices[i] = cloneVertex(v)
	}
	out.Edges = make([]domain.PersistedEdge, len(g.Edges))
	for i, e := range g.Edges {
		out.Edges[i] = cloneEdge(e)
	}
	return out
}

func cloneVertex(v domain.PersistedVertex) domain.PersistedVertex {
	if v.ID != nil {
		v.ID = domain.Int64Ptr(*v.ID)
	}
	if v.TempRef != nil {
		v.TempRef = domain.Int64Ptr(*v.TempRef)
	}
	if v.Properties.Position != nil {
		p := *v.Properties.Position
		v.Properties.Position = &p
	}
	if v.Properties.Config != nil {
		v.Properties.Config = domain.CloneConfig(v.Properties.Config)
	}
	return v
}

func cloneEdge(e domain.PersistedEdge) domain.PersistedEdge {
	if e.ID != nil {
		e.ID = domain.Int64Ptr(*e.ID)
	}
	e.SourceProperties = cloneEndpoint(e.SourceProperties)
	e.TargetProperties = cloneEndpoint(e.TargetProperties)
	return e
}

func cloneEndpoint(p domain.EndpointProperties) domain.EndpointProperties {
	if p.Name != nil {
		p.Name = domain.StringPtr(*p.Name)
	}
	if p.Handle != nil {
		p.Handle = domain.StringPtr(*p.Handle)
	}
	return p
}
