package session

import (
	"fmt"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/mapper"
	"github.com/aretw0/flowdeck/pkg/schema"
)

// AddNode appends a node of the given type at pos, annotated from the catalog.
// It fails with *domain.UnknownNodeTypeError when the catalog has no such type.
func AddNode(s State, catalog Catalog, alloc *mapper.Allocator, nodeType string, pos domain.Position) (State, domain.NodeID, error) {
	if catalog == nil || !catalog.IsLoaded() {
		return s, domain.NodeID{}, domain.ErrRegistryNotLoaded
	}
	def, ok := catalog.Lookup(nodeType)
	if !ok {
		return s, domain.NodeID{}, &domain.UnknownNodeTypeError{Type: nodeType}
	}

	n := domain.VisualNode{
		ID:       alloc.Next(),
		Position: pos,
		Label:    def.Label,
		NodeType: nodeType,
		Config:   map[string]any{},
	}
	n = mapper.AnnotateNode(n, catalog)

	out := s.withGraph()
	out.Graph.Nodes = append(out.Graph.Nodes, n)
	return out, n.ID, nil
}

// UpdateNodeConfig merges patch into the node's config.
// On language-model nodes a patch that sets provider also clears model_name, unless the
// patch sets model_name itself.
func UpdateNodeConfig(s State, id domain.NodeID, patch map[string]any) (State, error) {
	i := s.nodeIndex(id)
	if i < 0 {
		return s, fmt.Errorf("update config of %s: %w", id, domain.ErrNodeNotFound)
	}

	out := s.withGraph()
	n := &out.Graph.Nodes[i]
	if n.Config == nil {
		n.Config = map[string]any{}
	}
	for k, v := range patch {
		n.Config[k] = v
	}
	if domain.IsLanguageModel(n.NodeType) {
		if _, setsProvider := patch[domain.ConfigKeyProvider]; setsProvider {
			if _, setsModel := patch[domain.ConfigKeyModelName]; !setsModel {
				n.Config[domain.ConfigKeyModelName] = ""
			}
		}
	}
	return out, nil
}

// SetConfigField parses raw as JSON and stores it under key.
// Malformed text yields *domain.InvalidConfigValueError and leaves the state unchanged.
func SetConfigField(s State, id domain.NodeID, key, raw string) (State, error) {
	if s.nodeIndex(id) < 0 {
		return s, fmt.Errorf("set %q of %s: %w", key, id, domain.ErrNodeNotFound)
	}
	v, err := schema.ParseFieldValue(raw)
	if err != nil {
		return s, &domain.InvalidConfigValueError{NodeID: id, Field: key, Cause: err}
	}
	return UpdateNodeConfig(s, id, map[string]any{key: v})
}

// SetFieldsToAdd replaces the fields_to_add mapping of a node from key/value rows.
func SetFieldsToAdd(s State, id domain.NodeID, rows [][2]string) (State, error) {
	return UpdateNodeConfig(s, id, map[string]any{domain.ConfigKeyFieldsToAdd: schema.FieldsToAdd(rows)})
}

// UpdateNodeLabel renames a node.
func UpdateNodeLabel(s State, id domain.NodeID, label string) (State, error) {
	i := s.nodeIndex(id)
	if i < 0 {
		return s, fmt.Errorf("rename %s: %w", id, domain.ErrNodeNotFound)
	}
	out := s.withGraph()
	out.Graph.Nodes[i].Label = label
	return out, nil
}

// MoveNode sets a node's position.
func MoveNode(s State, id domain.NodeID, pos domain.Position) (State, error) {
	i := s.nodeIndex(id)
	if i < 0 {
		return s, fmt.Errorf("move %s: %w", id, domain.ErrNodeNotFound)
	}
	out := s.withGraph()
	out.Graph.Nodes[i].Position = pos
	return out, nil
}

// DeleteNode removes a node and every edge that references it.
// The selection is cleared when it pointed at the deleted node.
func DeleteNode(s State, id domain.NodeID) (State, error) {
	i := s.nodeIndex(id)
	if i < 0 {
		return s, fmt.Errorf("delete %s: %w", id, domain.ErrNodeNotFound)
	}

	out := s.withGraph()
	out.Graph.Nodes = append(out.Graph.Nodes[:i], out.Graph.Nodes[i+1:]...)
	edges := out.Graph.Edges[:0]
	for _, e := range out.Graph.Edges {
		if !e.Touches(id) {
			edges = append(edges, e)
		}
	}
	out.Graph.Edges = edges
	if out.Selected == id {
		out.Selected = domain.NodeID{}
	}
	return out, nil
}

// Connect appends an edge between two existing nodes.
// Parallel edges and self-loops are allowed.
func Connect(s State, alloc *mapper.Allocator, source, target domain.NodeID, sourceHandle, targetHandle *string) (State, domain.NodeID, error) {
	if s.nodeIndex(source) < 0 {
		return s, domain.NodeID{}, fmt.Errorf("connect from %s: %w", source, domain.ErrNodeNotFound)
	}
	if s.nodeIndex(target) < 0 {
		return s, domain.NodeID{}, fmt.Errorf("connect to %s: %w", target, domain.ErrNodeNotFound)
	}

	e := domain.VisualEdge{
		ID:           alloc.Next(),
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
	out := s.withGraph()
	out.Graph.Edges = append(out.Graph.Edges, e)
	return out, e.ID, nil
}

// Disconnect removes an edge.
func Disconnect(s State, edgeID domain.NodeID) (State, error) {
	i := s.edgeIndex(edgeID)
	if i < 0 {
		return s, fmt.Errorf("disconnect %s: %w", edgeID, domain.ErrEdgeNotFound)
	}
	out := s.withGraph()
	out.Graph.Edges = append(out.Graph.Edges[:i], out.Graph.Edges[i+1:]...)
	return out, nil
}

// Select marks a node as selected.
func Select(s State, id domain.NodeID) (State, error) {
	if s.nodeIndex(id) < 0 {
		return s, fmt.Errorf("select %s: %w", id, domain.ErrNodeNotFound)
	}
	out := s
	out.Selected = id
	return out, nil
}

// ClearSelection deselects any node.
func ClearSelection(s State) State {
	out := s
	out.Selected = domain.NodeID{}
	return out
}

// EdgeChangeType is the kind of a bulk edge change reported by the canvas.
type EdgeChangeType string

const (
	EdgeRemove  EdgeChangeType = "remove"
	EdgeReplace EdgeChangeType = "replace"
	EdgeSelect  EdgeChangeType = "select"
)

// EdgeChange is one entry of a bulk edge change.
type EdgeChange struct {
	Type EdgeChangeType
	ID   domain.NodeID
	// Edge is the canvas' version of the edge for EdgeReplace. The canvas drops custom
	// handle fields, so nil handles are restored from the session's record.
	Edge *domain.VisualEdge
}

// ApplyEdgeChanges applies a bulk edge change. Changes are atomic: if one references an
// unknown edge nothing is applied. Handles of every surviving edge are re-attached from
// the previous record when the change lost them.
func ApplyEdgeChanges(s State, changes []EdgeChange) (State, error) {
	previous := make(map[domain.NodeID]domain.VisualEdge, len(s.Graph.Edges))
	for _, e := range s.Graph.Edges {
		previous[e.ID] = e
	}

	out := s.withGraph()
	for _, c := range changes {
		i := out.edgeIndex(c.ID)
		if i < 0 {
			return s, fmt.Errorf("edge change %s on %s: %w", c.Type, c.ID, domain.ErrEdgeNotFound)
		}
		switch c.Type {
		case EdgeRemove:
			out.Graph.Edges = append(out.Graph.Edges[:i], out.Graph.Edges[i+1:]...)
		case EdgeReplace:
			if c.Edge == nil {
				continue
			}
			replacement := *c.Edge
			replacement.ID = c.ID
			if replacement.OriginalID == nil {
				replacement.OriginalID = out.Graph.Edges[i].OriginalID
			}
			out.Graph.Edges[i] = replacement
		case EdgeSelect:
			// Edge selection lives in the canvas.
		default:
			return s, fmt.Errorf("unsupported edge change %q", c.Type)
		}
	}

	for i, e := range out.Graph.Edges {
		prev, ok := previous[e.ID]
		if !ok {
			continue
		}
		if e.SourceHandle == nil {
			out.Graph.Edges[i].SourceHandle = prev.SourceHandle
		}
		if e.TargetHandle == nil {
			out.Graph.Edges[i].TargetHandle = prev.TargetHandle
		}
	}
	return out, nil
}

// NodeChangeType is the kind of a bulk node change reported by the canvas.
type NodeChangeType string

const (
	NodePosition NodeChangeType = "position"
	NodeRemove   NodeChangeType = "remove"
	NodeSelect   NodeChangeType = "select"
)

// NodeChange is one entry of a bulk node change.
type NodeChange struct {
	Type     NodeChangeType
	ID       domain.NodeID
	Position *domain.Position
	Selected bool
}

// ApplyNodeChanges applies a bulk node change. Removal cascades like DeleteNode.
// Changes are atomic: if one references an unknown node nothing is applied.
func ApplyNodeChanges(s State, changes []NodeChange) (State, error) {
	out := s
	var err error
	for _, c := range changes {
		switch c.Type {
		case NodePosition:
			if c.Position == nil {
				continue
			}
			out, err = MoveNode(out, c.ID, *c.Position)
		case NodeRemove:
			out, err = DeleteNode(out, c.ID)
		case NodeSelect:
			if c.Selected {
				out, err = Select(out, c.ID)
			} else if out.Selected == c.ID {
				out = ClearSelection(out)
			}
		default:
			err = fmt.Errorf("unsupported node change %q", c.Type)
		}
		if err != nil {
			return s, err
		}
	}
	return out, nil
}
