package domain

// Config keys with cross-field semantics.
const (
	ConfigKeyProvider    = "provider"
	ConfigKeyModelName   = "model_name"
	ConfigKeyFieldsToAdd = "fields_to_add"
)

// GenericPort is rendered when a node's type declares no ports (or is unknown).
const GenericPort PortName = "default"

// VisualNode is an editable node on the canvas.
type VisualNode struct {
	ID         NodeID         `json:"id" yaml:"id"`
	Position   Position       `json:"position" yaml:"position"`
	Label      string         `json:"label" yaml:"label"`
	NodeType   string         `json:"node_type" yaml:"node_type"`
	Config     map[string]any `json:"config" yaml:"config"`
	OriginalID *int64         `json:"original_id,omitempty" yaml:"original_id,omitempty"`

	// Port annotation copied from the registry. Not part of the persisted content.
	Category    string     `json:"category,omitempty" yaml:"category,omitempty"`
	InputPorts  []PortName `json:"input_ports,omitempty" yaml:"input_ports,omitempty"`
	OutputPorts []PortName `json:"output_ports,omitempty" yaml:"output_ports,omitempty"`
}

// DisplayLabel falls back to the node type when no label was set.
func (n VisualNode) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.NodeType
}

// EffectivePorts returns the ports to render. A node with no declared ports gets one
// generic input and one generic output.
func (n VisualNode) EffectivePorts() (inputs, outputs []PortName) {
	inputs, outputs = n.InputPorts, n.OutputPorts
	if len(inputs) == 0 {
		inputs = []PortName{GenericPort}
	}
	if len(outputs) == 0 {
		outputs = []PortName{GenericPort}
	}
	return inputs, outputs
}

// Clone returns a copy whose config and port slices can be mutated independently.
func (n VisualNode) Clone() VisualNode {
	out := n
	out.Config = CloneConfig(n.Config)
	if n.OriginalID != nil {
		out.OriginalID = Int64Ptr(*n.OriginalID)
	}
	out.InputPorts = append([]PortName(nil), n.InputPorts...)
	out.OutputPorts = append([]PortName(nil), n.OutputPorts...)
	return out
}

// VisualEdge is an editable connection on the canvas. Source and Target reference
// VisualNode ids, never durable ids.
type VisualEdge struct {
	ID           NodeID  `json:"id" yaml:"id"`
	Source       NodeID  `json:"source" yaml:"source"`
	Target       NodeID  `json:"target" yaml:"target"`
	SourceHandle *string `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
	TargetHandle *string `json:"target_handle,omitempty" yaml:"target_handle,omitempty"`
	OriginalID   *int64  `json:"original_id,omitempty" yaml:"original_id,omitempty"`
}

// Touches reports whether the edge references the node at either end.
func (e VisualEdge) Touches(id NodeID) bool {
	return e.Source == id || e.Target == id
}

// VisualGraph is the editable graph.
type VisualGraph struct {
	Nodes []VisualNode `json:"nodes" yaml:"nodes"`
	Edges []VisualEdge `json:"edges" yaml:"edges"`
}

// Node returns the node with the given id.
func (g VisualGraph) Node(id NodeID) (VisualNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return VisualNode{}, false
}

// Edge returns the edge with the given id.
func (g VisualGraph) Edge(id NodeID) (VisualEdge, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return VisualEdge{}, false
}

// StartNodes returns the chat input nodes, which is where executions enter the graph.
func (g VisualGraph) StartNodes() []VisualNode {
	var out []VisualNode
	for _, n := range g.Nodes {
		if n.NodeType == NodeTypeChatInput {
			out = append(out, n)
		}
	}
	return out
}

// Clone deep-copies the graph.
func (g VisualGraph) Clone() VisualGraph {
	out := VisualGraph{
		Nodes: make([]VisualNode, len(g.Nodes)),
		Edges: make([]VisualEdge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Edges, g.Edges)
	return out
}

// CloneConfig copies a config mapping one level deep. Nested maps are copied recursively.
func CloneConfig(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			out[k] = CloneConfig(nested)
			continue
		}
		out[k] = v
	}
	return out
}
