package dsl

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowdeck/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	name        string
	description string
	order       []string
	nodes       map[string]*NodeBuilder
}

// New creates a new graph builder for a workflow with the given name.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Describe sets the workflow description.
func (b *Builder) Describe(text string) *Builder {
	b.description = text
	return b
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(ref string) *NodeBuilder {
	if nb, ok := b.nodes[ref]; ok {
		return nb
	}
	nb := &NodeBuilder{
		ref:      ref,
		builder:  b,
		position: domain.Position{X: float64(100 + 250*len(b.order)), Y: 100},
	}
	b.nodes[ref] = nb
	b.order = append(b.order, ref)
	return nb
}

// Build returns the graph with durable ids. Vertices get 1..n in the order they were
// added and edges continue from n+1.
func (b *Builder) Build(id int64) (*domain.PersistedGraph, error) {
	vertices, edges, err := b.assemble(func(i int) int64 { return int64(i + 1) })
	if err != nil {
		return nil, err
	}
	for i := range vertices {
		vertices[i].ID = domain.Int64Ptr(int64(i + 1))
	}
	next := int64(len(vertices) + 1)
	for i := range edges {
		edges[i].ID = domain.Int64Ptr(next)
		next++
	}
	return &domain.PersistedGraph{
		GraphSummary: domain.GraphSummary{ID: id, Name: b.name, Description: b.description},
		Vertices:     vertices,
		Edges:        edges,
	}, nil
}

// Payload returns the graph as a change set for a new workflow. Every vertex carries a
// temporary reference and edges point at those references.
func (b *Builder) Payload() (domain.WorkflowSavePayload, error) {
	vertices, edges, err := b.assemble(func(i int) int64 { return domain.Temporary(int64(i + 1)).Int64() })
	if err != nil {
		return domain.WorkflowSavePayload{}, err
	}
	for i := range vertices {
		vertices[i].TempRef = domain.Int64Ptr(domain.Temporary(int64(i + 1)).Int64())
	}
	return domain.WorkflowSavePayload{
		Name:        b.name,
		Description: b.description,
		Vertices:    vertices,
		Edges:       edges,
	}, nil
}

func (b *Builder) assemble(idOf func(int) int64) ([]domain.PersistedVertex, []domain.PersistedEdge, error) {
	index := make(map[string]int, len(b.order))
	for i, ref := range b.order {
		index[ref] = i
	}

	var missing []string
	vertices := make([]domain.PersistedVertex, 0, len(b.order))
	var edges []domain.PersistedEdge
	for i, ref := range b.order {
		nb := b.nodes[ref]
		if nb.nodeType == "" {
			return nil, nil, fmt.Errorf("node %q has no type", ref)
		}
		vertices = append(vertices, nb.vertex())
		for _, l := range nb.links {
			target, ok := index[l.target]
			if !ok {
				missing = append(missing, fmt.Sprintf("%s -> %s", ref, l.target))
				continue
			}
			edges = append(edges, domain.PersistedEdge{
				SourceID:         idOf(i),
				TargetID:         idOf(target),
				Type:             domain.EdgeTypeDefault,
				SourceProperties: domain.EndpointProperties{Name: l.sourcePort},
				TargetProperties: domain.EndpointProperties{Name: l.targetPort},
			})
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("found %d links to undefined nodes:\n- %s", len(missing), strings.Join(missing, "\n- "))
	}
	return vertices, edges, nil
}
