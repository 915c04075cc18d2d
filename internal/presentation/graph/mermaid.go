package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowdeck/pkg/domain"
)

// RunOverlay carries per-node run status to visualize on the graph, keyed by node id.
type RunOverlay struct {
	Nodes map[string]domain.NodeStatus
}

// GenerateMermaid produces a Mermaid flowchart from the visual graph.
// It applies semantic styling:
// - Chat input: ((Circle))
// - Chat output: ([Stadium])
// - Language model: [[Subroutine]]
// - Condition: {Rhombus}
// - Parser: [/Parallelogram/]
// - Default: [Rectangle]
// Edge handles become edge labels. Run status classes are applied if an overlay is given.
func GenerateMermaid(g domain.VisualGraph, overlay *RunOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes {
		opener, closer := "[", "]"
		switch node.NodeType {
		case domain.NodeTypeChatInput:
			opener, closer = "((", "))"
		case domain.NodeTypeChatOutput:
			opener, closer = "([", "])"
		case domain.NodeTypeLLM:
			opener, closer = "[[", "]]"
		case domain.NodeTypeCondition:
			opener, closer = "{", "}"
		case domain.NodeTypeParser:
			opener, closer = "[/", "/]"
		}
		label := escape(node.DisplayLabel())
		if node.ID.IsTemporary() {
			label += " (unsaved)"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(node.ID), opener, label, closer)
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if text := handleLabel(e); text != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escape(text))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", mermaidID(e.Source), arrow, mermaidID(e.Target))
	}

	if overlay != nil && len(overlay.Nodes) > 0 {
		sb.WriteString("\n    %% Run Status\n")
		// Black text keeps contrast on light fills regardless of theme.
		sb.WriteString("    classDef completed fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray: 4 4,color:#000;\n")
		for _, node := range g.Nodes {
			ns, ok := overlay.Nodes[runKey(node)]
			if !ok || ns.Status == domain.NodePending {
				continue
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", mermaidID(node.ID), ns.Status)
		}
	}

	return sb.String()
}

// runKey is the id the backend reports run status under.
func runKey(n domain.VisualNode) string {
	if n.OriginalID != nil {
		return fmt.Sprint(*n.OriginalID)
	}
	return n.ID.String()
}

func handleLabel(e domain.VisualEdge) string {
	var parts []string
	if e.SourceHandle != nil && *e.SourceHandle != "" {
		parts = append(parts, *e.SourceHandle)
	}
	if e.TargetHandle != nil && *e.TargetHandle != "" {
		parts = append(parts, *e.TargetHandle)
	}
	return strings.Join(parts, " → ")
}

// mermaidID makes node ids valid Mermaid identifiers; temporary ids are negative.
func mermaidID(id domain.NodeID) string {
	if id.IsTemporary() {
		return fmt.Sprintf("tmp%d", -id.Int64())
	}
	return "n" + id.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
