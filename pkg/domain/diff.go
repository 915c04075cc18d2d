package domain

import (
	"reflect"
)

// EntityState is the edit state of a node or edge relative to the last loaded snapshot.
type EntityState string

const (
	EntityClean EntityState = "clean" // Matches the last loaded or saved snapshot
	EntityDirty EntityState = "dirty" // Changed, added, or removed locally
)

// GraphDiff represents the changes between a snapshot and the current visual graph.
// It is designed to be serialized to JSON so observers can render pending changes.
type GraphDiff struct {
	AddedNodes   []NodeID `json:"added_nodes,omitempty"`
	RemovedNodes []NodeID `json:"removed_nodes,omitempty"`
	ChangedNodes []NodeID `json:"changed_nodes,omitempty"`

	AddedEdges   []NodeID `json:"added_edges,omitempty"`
	RemovedEdges []NodeID `json:"removed_edges,omitempty"`
	ChangedEdges []NodeID `json:"changed_edges,omitempty"`
}

// DiffGraphs calculates the difference between the snapshot and the current graph.
// It returns nil when nothing changed. Port annotation is ignored: re-annotating nodes
// after the registry resolves is not an edit.
func DiffGraphs(snapshot, current VisualGraph) *GraphDiff {
	diff := &GraphDiff{}

	oldNodes := make(map[NodeID]VisualNode, len(snapshot.Nodes))
	for _, n := range snapshot.Nodes {
		oldNodes[n.ID] = n
	}
	seenNodes := make(map[NodeID]struct{}, len(current.Nodes))
	for _, n := range current.Nodes {
		seenNodes[n.ID] = struct{}{}
		old, exists := oldNodes[n.ID]
		if !exists {
			diff.AddedNodes = append(diff.AddedNodes, n.ID)
			continue
		}
		if !sameNodeContent(old, n) {
			diff.ChangedNodes = append(diff.ChangedNodes, n.ID)
		}
	}
	for _, n := range snapshot.Nodes {
		if _, exists := seenNodes[n.ID]; !exists {
			diff.RemovedNodes = append(diff.RemovedNodes, n.ID)
		}
	}

	oldEdges := make(map[NodeID]VisualEdge, len(snapshot.Edges))
	for _, e := range snapshot.Edges {
		oldEdges[e.ID] = e
	}
	seenEdges := make(map[NodeID]struct{}, len(current.Edges))
	for _, e := range current.Edges {
		seenEdges[e.ID] = struct{}{}
		old, exists := oldEdges[e.ID]
		if !exists {
			diff.AddedEdges = append(diff.AddedEdges, e.ID)
			continue
		}
		if !sameEdgeContent(old, e) {
			diff.ChangedEdges = append(diff.ChangedEdges, e.ID)
		}
	}
	for _, e := range snapshot.Edges {
		if _, exists := seenEdges[e.ID]; !exists {
			diff.RemovedEdges = append(diff.RemovedEdges, e.ID)
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func sameNodeContent(a, b VisualNode) bool {
	if a.Position != b.Position || a.Label != b.Label || a.NodeType != b.NodeType {
		return false
	}
	if len(a.Config) == 0 && len(b.Config) == 0 {
		return true
	}
	return reflect.DeepEqual(a.Config, b.Config)
}

func sameEdgeContent(a, b VisualEdge) bool {
	return a.Source == b.Source &&
		a.Target == b.Target &&
		equalPtr(a.SourceHandle, b.SourceHandle) &&
		equalPtr(a.TargetHandle, b.TargetHandle)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// IsEmpty checks if the diff contains any change.
func (d *GraphDiff) IsEmpty() bool {
	return d == nil || (len(d.AddedNodes) == 0 &&
		len(d.RemovedNodes) == 0 &&
		len(d.ChangedNodes) == 0 &&
		len(d.AddedEdges) == 0 &&
		len(d.RemovedEdges) == 0 &&
		len(d.ChangedEdges) == 0)
}

// Structural reports whether nodes or edges were added or removed.
func (d *GraphDiff) Structural() bool {
	return d != nil && (len(d.AddedNodes) > 0 ||
		len(d.RemovedNodes) > 0 ||
		len(d.AddedEdges) > 0 ||
		len(d.RemovedEdges) > 0)
}

// NodeState returns the edit state of a node present in the current graph.
func (d *GraphDiff) NodeState(id NodeID) EntityState {
	if d == nil {
		return EntityClean
	}
	if containsID(d.AddedNodes, id) || containsID(d.ChangedNodes, id) {
		return EntityDirty
	}
	return EntityClean
}

// EdgeState returns the edit state of an edge present in the current graph.
func (d *GraphDiff) EdgeState(id NodeID) EntityState {
	if d == nil {
		return EntityClean
	}
	if containsID(d.AddedEdges, id) || containsID(d.ChangedEdges, id) {
		return EntityDirty
	}
	return EntityClean
}

func containsID(ids []NodeID, id NodeID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
