// Package mapper converts between the persisted graph owned by the backend and the
// editable visual graph held by an edit session.
//
// LoadToVisual and SaveFromVisual are inverses modulo position rounding and
// temporary id assignment.
package mapper

import (
	"github.com/aretw0/flowdeck/pkg/domain"
)

// Lookup resolves node type definitions. *registry.Registry satisfies it.
type Lookup interface {
	Lookup(nodeType string) (domain.NodeTypeDefinition, bool)
}

// Meta is the graph metadata carried on a save payload.
type Meta struct {
	Name        string
	Description string
}

// LoadToVisual converts a persisted graph into visual nodes and edges.
// Vertices and edges without a durable id get a temporary id from alloc.
// A nil lookup loads every node unannotated; call Annotate once the catalog resolves.
// Edges referencing a vertex that is not in the graph are kept and reported as orphans.
func LoadToVisual(g *domain.PersistedGraph, reg Lookup, alloc *Allocator) ([]domain.VisualNode, []domain.VisualEdge, []domain.OrphanEdgeReference) {
	if g == nil {
		return nil, nil, nil
	}

	nodes := make([]domain.VisualNode, 0, len(g.Vertices))
	present := make(map[domain.NodeID]struct{}, len(g.Vertices))
	for _, v := range g.Vertices {
		n := domain.VisualNode{
			NodeType: v.Type,
			Label:    v.Properties.Label,
			Position: domain.DefaultPosition,
			Config:   domain.CloneConfig(v.Properties.Config),
		}
		if v.ID != nil {
			n.ID = domain.Durable(*v.ID)
			n.OriginalID = domain.Int64Ptr(*v.ID)
		} else {
			n.ID = alloc.Next()
		}
		if v.Properties.Position != nil {
			n.Position = *v.Properties.Position
		}
		annotate(&n, reg)
		present[n.ID] = struct{}{}
		nodes = append(nodes, n)
	}

	edges := make([]domain.VisualEdge, 0, len(g.Edges))
	var orphans []domain.OrphanEdgeReference
	for _, pe := range g.Edges {
		e := domain.VisualEdge{
			Source:       persistedRef(pe.SourceID),
			Target:       persistedRef(pe.TargetID),
			SourceHandle: copyName(pe.SourceProperties.PortName()),
			TargetHandle: copyName(pe.TargetProperties.PortName()),
		}
		if pe.ID != nil {
			e.ID = domain.Durable(*pe.ID)
			e.OriginalID = domain.Int64Ptr(*pe.ID)
		} else {
			e.ID = alloc.Next()
		}
		if _, ok := present[e.Source]; !ok {
			orphans = append(orphans, domain.OrphanEdgeReference{EdgeID: e.ID, Endpoint: "source", Missing: e.Source})
		}
		if _, ok := present[e.Target]; !ok {
			orphans = append(orphans, domain.OrphanEdgeReference{EdgeID: e.ID, Endpoint: "target", Missing: e.Target})
		}
		edges = append(edges, e)
	}

	return nodes, edges, orphans
}

// Annotate copies category and port lists from the registry onto each node.
// Nodes whose type is unknown get empty port lists.
func Annotate(nodes []domain.VisualNode, reg Lookup) []domain.VisualNode {
	out := make([]domain.VisualNode, len(nodes))
	for i, n := range nodes {
		n = n.Clone()
		annotate(&n, reg)
		out[i] = n
	}
	return out
}

// AnnotateNode annotates a single node.
func AnnotateNode(n domain.VisualNode, reg Lookup) domain.VisualNode {
	annotate(&n, reg)
	return n
}

func annotate(n *domain.VisualNode, reg Lookup) {
	n.Category, n.InputPorts, n.OutputPorts = "", nil, nil
	if reg == nil {
		return
	}
	def, ok := reg.Lookup(n.NodeType)
	if !ok {
		return
	}
	n.Category = def.Category
	n.InputPorts = def.InputPorts()
	n.OutputPorts = def.OutputPorts()
}

// SaveFromVisual builds the change set for a save.
// Positions are rounded to integers. Unsaved nodes carry their temporary id as TempRef, and
// edges reference them by that value. A durable endpoint missing from nodes is sent as its
// numeric id, so graphs loaded with orphan edges still save. A temporary endpoint missing
// from nodes cannot be referenced: every such edge is reported in a *domain.UnresolvedEdgeError.
func SaveFromVisual(meta Meta, nodes []domain.VisualNode, edges []domain.VisualEdge) (domain.WorkflowSavePayload, error) {
	payload := domain.WorkflowSavePayload{
		Name:        meta.Name,
		Description: meta.Description,
		Vertices:    make([]domain.PersistedVertex, 0, len(nodes)),
		Edges:       make([]domain.PersistedEdge, 0, len(edges)),
	}

	refs := make(map[domain.NodeID]int64, len(nodes))
	for _, n := range nodes {
		pos := n.Position.Rounded()
		v := domain.PersistedVertex{
			Type: n.NodeType,
			Properties: domain.VertexProperties{
				Label:    n.Label,
				Position: &pos,
				Config:   domain.CloneConfig(n.Config),
			},
		}
		if n.OriginalID != nil {
			v.ID = domain.Int64Ptr(*n.OriginalID)
			refs[n.ID] = *n.OriginalID
		} else {
			v.TempRef = domain.Int64Ptr(n.ID.Int64())
			refs[n.ID] = n.ID.Int64()
		}
		payload.Vertices = append(payload.Vertices, v)
	}

	var unresolved []domain.NodeID
	for _, e := range edges {
		source, okSource := endpointRef(refs, e.Source)
		target, okTarget := endpointRef(refs, e.Target)
		if !okSource || !okTarget {
			unresolved = append(unresolved, e.ID)
			continue
		}
		payload.Edges = append(payload.Edges, domain.PersistedEdge{
			SourceID:         source,
			TargetID:         target,
			Type:             domain.EdgeTypeDefault,
			SourceProperties: domain.EndpointProperties{Name: copyName(e.SourceHandle)},
			TargetProperties: domain.EndpointProperties{Name: copyName(e.TargetHandle)},
		})
	}
	if len(unresolved) > 0 {
		return domain.WorkflowSavePayload{}, &domain.UnresolvedEdgeError{Edges: unresolved}
	}

	return payload, nil
}

func endpointRef(refs map[domain.NodeID]int64, id domain.NodeID) (int64, bool) {
	if ref, ok := refs[id]; ok {
		return ref, true
	}
	if id.IsDurable() {
		return id.Int64(), true
	}
	return 0, false
}

// persistedRef maps an endpoint id from the backend. Negative values are unresolved
// temporary references.
func persistedRef(n int64) domain.NodeID {
	if n < 0 {
		return domain.Temporary(n)
	}
	return domain.Durable(n)
}

func copyName(p *string) *string {
	if p == nil {
		return nil
	}
	return domain.StringPtr(*p)
}
