package domain

// Node types known by the default backend catalog.
const (
	NodeTypeChatInput  = "CHAT_INPUT"
	NodeTypeChatOutput = "CHAT_OUTPUT"
	NodeTypeLLM        = "LLM_NODE"
	NodeTypeCondition  = "CONDITION"
	NodeTypeLoop       = "LOOP"
	NodeTypeParser     = "PARSER_NODE"
)

// Palette categories.
const (
	CategoryAIML           = "AI_ML"
	CategoryDataProcessing = "DATA_PROCESSING"
	CategoryLogic          = "LOGIC"
	CategoryInputOutput    = "INPUT_OUTPUT"
)

// PortName names a connection point on a node type.
type PortName = string

// Port is a declared input or output of a node type.
type Port struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// NodeTypeDefinition is one entry of the node type catalog. Immutable once loaded.
type NodeTypeDefinition struct {
	Type        string `json:"type" yaml:"type"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category" yaml:"category"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
	Inputs      []Port `json:"inputs" yaml:"inputs"`
	Outputs     []Port `json:"outputs" yaml:"outputs"`
}

// InputPorts returns the ordered input port names.
func (d NodeTypeDefinition) InputPorts() []PortName {
	return portNames(d.Inputs)
}

// OutputPorts returns the ordered output port names.
func (d NodeTypeDefinition) OutputPorts() []PortName {
	return portNames(d.Outputs)
}

func portNames(ports []Port) []PortName {
	names := make([]PortName, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return names
}

// IsLanguageModel reports whether the node type carries the provider/model_name pair.
func IsLanguageModel(nodeType string) bool {
	return nodeType == NodeTypeLLM
}
