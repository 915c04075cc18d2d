package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/aretw0/flowdeck/pkg/domain"
)

// Put stores a graph as given, keeping its ids. It is meant for seeding fixtures.
// Vertices and edges must carry durable ids.
func (b *Backend) Put(g *domain.PersistedGraph) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := cloneGraph(g)
	if c.ID == 0 {
		c.ID = b.nextID
	}
	for _, v := range c.Vertices {
		if v.ID == nil {
			return fmt.Errorf("seed workflow %d: vertex of type %s has no id", c.ID, v.Type)
		}
		b.nextElem = max(b.nextElem, *v.ID+1)
	}
	for _, e := range c.Edges {
		if e.ID == nil {
			return fmt.Errorf("seed workflow %d: edge %d->%d has no id", c.ID, e.SourceID, e.TargetID)
		}
		b.nextElem = max(b.nextElem, *e.ID+1)
	}
	b.nextID = max(b.nextID, c.ID+1)
	b.graphs[c.ID] = c
	return nil
}

// Execute starts a run of a stored workflow. A graph the backend cannot order is
// rejected with success=false and no run is started.
func (b *Backend) Execute(ctx context.Context, id int64, inputs map[string]any) (*domain.ExecuteResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.graphs[id]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, domain.ErrWorkflowNotFound)
	}
	start := b.now()

	order, err := executionOrder(g)
	if err != nil {
		return &domain.ExecuteResponse{Success: false, Errors: []string{err.Error()}}, nil
	}

	r := &run{order: order, inputs: domain.CloneConfig(inputs)}
	r.status = domain.WorkflowStatus{GraphID: id, Status: domain.RunPending, Nodes: r.nodes(g, domain.RunPending)}
	b.runs[id] = r
	b.logger.Debug("run started", "graph_id", id, "order", order)

	return &domain.ExecuteResponse{
		Success:        true,
		Result:         map[string]any{"inputs": r.inputs},
		ExecutionOrder: order,
		StartTime:      start.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, nil
}

// Status advances the graph's latest run along the status script and reports it.
func (b *Backend) Status(ctx context.Context, id int64) (*domain.WorkflowStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.graphs[id]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, domain.ErrWorkflowNotFound)
	}
	r, ok := b.runs[id]
	if !ok {
		return &domain.WorkflowStatus{GraphID: id, Status: domain.RunIdle}, nil
	}

	status := domain.RunCompleted
	if len(b.script) > 0 {
		status = b.script[min(r.polls, len(b.script)-1)]
	}
	r.polls++
	r.status = domain.WorkflowStatus{GraphID: id, Status: status, Nodes: r.nodes(g, status)}
	return cloneStatus(r.status), nil
}

// NodeStatus reports one node of the graph's latest run.
func (b *Backend) NodeStatus(ctx context.Context, id int64, nodeID string) (*domain.NodeStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.graphs[id]; !ok {
		return nil, fmt.Errorf("workflow %d: %w", id, domain.ErrWorkflowNotFound)
	}
	r, ok := b.runs[id]
	if !ok {
		return nil, fmt.Errorf("workflow %d has no run: %w", id, domain.ErrNodeNotFound)
	}
	ns, ok := r.status.Nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s of workflow %d: %w", nodeID, id, domain.ErrNodeNotFound)
	}
	return &ns, nil
}

// nodes derives per-node progress from the run status: a running run has its first node
// completed and the next one running.
func (r *run) nodes(g *domain.PersistedGraph, status domain.RunStatus) map[string]domain.NodeStatus {
	types := make(map[string]string, len(g.Vertices))
	for _, v := range g.Vertices {
		types[strconv.FormatInt(*v.ID, 10)] = v.Type
	}

	out := make(map[string]domain.NodeStatus, len(r.order))
	for i, id := range r.order {
		ns := domain.NodeStatus{NodeID: id, Status: domain.NodePending}
		switch status {
		case domain.RunCompleted:
			ns.Status = domain.NodeCompleted
		case domain.RunFailed:
			ns.Status = domain.NodeSkipped
			if i == 0 {
				ns.Status = domain.NodeFailed
				ns.ErrorMessage = "execution failed"
			}
		case domain.RunCancelled:
			ns.Status = domain.NodeSkipped
		case domain.RunRunning:
			switch {
			case i == 0 && len(r.order) > 1:
				ns.Status = domain.NodeCompleted
			case i <= 1:
				ns.Status = domain.NodeRunning
			}
		}
		if ns.Status == domain.NodeCompleted {
			ns.InputData = r.inputs
			if types[id] == domain.NodeTypeChatOutput {
				ns.OutputData = map[string]any{"message": r.inputs["test_data"]}
			}
		}
		out[id] = ns
	}
	return out
}

// executionOrder sorts the vertices topologically. Ties break on vertex id.
func executionOrder(g *domain.PersistedGraph) ([]string, error) {
	if len(g.Vertices) == 0 {
		return nil, fmt.Errorf("workflow %d has no nodes", g.ID)
	}

	indegree := make(map[int64]int, len(g.Vertices))
	for _, v := range g.Vertices {
		indegree[*v.ID] = 0
	}
	next := make(map[int64][]int64)
	for _, e := range g.Edges {
		_, okSrc := indegree[e.SourceID]
		_, okTgt := indegree[e.TargetID]
		if !okSrc || !okTgt {
			continue
		}
		next[e.SourceID] = append(next[e.SourceID], e.TargetID)
		indegree[e.TargetID]++
	}

	var ready []int64
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(indegree))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, strconv.FormatInt(id, 10))
		for _, t := range next[id] {
			indegree[t]--
			if indegree[t] == 0 {
				ready = append(ready, t)
			}
		}
	}
	if len(order) != len(indegree) {
		return nil, fmt.Errorf("workflow %d contains a cycle", g.ID)
	}
	return order, nil
}

func cloneStatus(s domain.WorkflowStatus) *domain.WorkflowStatus {
	out := s
	out.Nodes = make(map[string]domain.NodeStatus, len(s.Nodes))
	for k, v := range s.Nodes {
		out.Nodes[k] = v
	}
	return &out
}
