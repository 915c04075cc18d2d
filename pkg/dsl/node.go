package dsl

import "github.com/aretw0/flowdeck/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	ref      string
	builder  *Builder
	nodeType string
	label    string
	position domain.Position
	config   map[string]any
	links    []link
}

type link struct {
	target     string
	sourcePort *string
	targetPort *string
}

// Type sets the node type.
func (n *NodeBuilder) Type(nodeType string) *NodeBuilder {
	n.nodeType = nodeType
	return n
}

// Label sets the display label.
func (n *NodeBuilder) Label(text string) *NodeBuilder {
	n.label = text
	return n
}

// At places the node on the canvas. Nodes default to a row in insertion order.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.position = domain.Position{X: x, Y: y}
	return n
}

// Set adds a config value to the node.
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	if n.config == nil {
		n.config = make(map[string]any)
	}
	n.config[key] = value
	return n
}

// Go connects the node's generic output to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.links = append(n.links, link{target: target})
	return n
}

// Branch connects a named output port to the target node.
// Use it for condition outputs such as "true" and "false".
func (n *NodeBuilder) Branch(port string, target string) *NodeBuilder {
	n.links = append(n.links, link{target: target, sourcePort: domain.StringPtr(port)})
	return n
}

// Into connects the node to a named input port of the target node.
func (n *NodeBuilder) Into(target string, port string) *NodeBuilder {
	n.links = append(n.links, link{target: target, targetPort: domain.StringPtr(port)})
	return n
}

// Add continues with another node of the same builder.
func (n *NodeBuilder) Add(ref string) *NodeBuilder {
	return n.builder.Add(ref)
}

// Build finishes the graph. See Builder.Build.
func (n *NodeBuilder) Build(id int64) (*domain.PersistedGraph, error) {
	return n.builder.Build(id)
}

// Payload finishes the graph as a change set. See Builder.Payload.
func (n *NodeBuilder) Payload() (domain.WorkflowSavePayload, error) {
	return n.builder.Payload()
}

func (n *NodeBuilder) vertex() domain.PersistedVertex {
	pos := n.position
	v := domain.PersistedVertex{
		Type: n.nodeType,
		Properties: domain.VertexProperties{
			Label:    n.label,
			Position: &pos,
		},
	}
	if n.config != nil {
		v.Properties.Config = domain.CloneConfig(n.config)
	}
	return v
}
