package session

import (
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/mapper"
)

// Catalog is the node type lookup an edit session needs. *registry.Registry satisfies it.
type Catalog interface {
	mapper.Lookup
	IsLoaded() bool
}

// State is the immutable value of an edit session.
// Transition functions never modify their input: they return a new State.
type State struct {
	WorkflowID  int64              `json:"workflow_id,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Graph       domain.VisualGraph `json:"graph"`
	// Snapshot is the graph as last loaded or saved. Dirty tracking compares against it.
	Snapshot domain.VisualGraph `json:"snapshot"`
	// Selected is the zero NodeID when nothing is selected.
	Selected domain.NodeID `json:"selected,omitempty"`
}

// NewState creates the state of an unsaved, empty workflow.
func NewState(name, description string) State {
	return State{Name: name, Description: description}
}

// loadedState builds a clean state from freshly loaded nodes and edges.
func loadedState(meta domain.GraphSummary, nodes []domain.VisualNode, edges []domain.VisualEdge) State {
	g := domain.VisualGraph{Nodes: nodes, Edges: edges}
	return State{
		WorkflowID:  meta.ID,
		Name:        meta.Name,
		Description: meta.Description,
		Graph:       g,
		Snapshot:    g.Clone(),
	}
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := s
	out.Graph = s.Graph.Clone()
	out.Snapshot = s.Snapshot.Clone()
	return out
}

// Diff returns the local changes against the snapshot, nil when clean.
func (s State) Diff() *domain.GraphDiff {
	return domain.DiffGraphs(s.Snapshot, s.Graph)
}

// IsDirty reports whether any node or edge differs from the snapshot.
func (s State) IsDirty() bool {
	return !s.Diff().IsEmpty()
}

// NodeState returns whether a node differs from the snapshot.
func (s State) NodeState(id domain.NodeID) domain.EntityState {
	return s.Diff().NodeState(id)
}

// SelectedNode returns the selected node, if any.
func (s State) SelectedNode() (domain.VisualNode, bool) {
	if s.Selected.IsZero() {
		return domain.VisualNode{}, false
	}
	return s.Graph.Node(s.Selected)
}

// Meta returns the metadata carried on a save payload.
func (s State) Meta() mapper.Meta {
	return mapper.Meta{Name: s.Name, Description: s.Description}
}

func (s State) nodeIndex(id domain.NodeID) int {
	for i, n := range s.Graph.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (s State) edgeIndex(id domain.NodeID) int {
	for i, e := range s.Graph.Edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// withGraph returns a copy of s whose graph can be mutated freely.
func (s State) withGraph() State {
	out := s
	out.Graph = s.Graph.Clone()
	return out
}
