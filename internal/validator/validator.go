// Package validator lints an editable graph before it is saved or run.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/registry"
	"github.com/aretw0/flowdeck/pkg/schema"
)

// Severity ranks an issue.
type Severity string

const (
	// SeverityError marks a graph the backend will reject or cannot run.
	SeverityError Severity = "error"
	// SeverityWarning marks something that is probably a mistake.
	SeverityWarning Severity = "warning"
)

// Issue is one finding.
type Issue struct {
	Severity Severity
	Node     string
	Message  string
}

func (i Issue) String() string {
	if i.Node == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: node %s: %s", i.Severity, i.Node, i.Message)
}

// Catalog resolves node type definitions. *registry.Registry satisfies it.
type Catalog interface {
	Lookup(nodeType string) (domain.NodeTypeDefinition, bool)
}

// Report holds the issues found in one graph.
type Report struct {
	Issues []Issue
}

// Errors returns the issues of error severity.
func (r Report) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Err folds the error issues into one error, or nil when there are none.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.String()
	}
	return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(lines, "\n- "))
}

// ValidateGraph checks for broken edges, missing required inputs, invalid configs and
// nodes that cannot be reached from a chat input.
func ValidateGraph(g domain.VisualGraph, catalog Catalog) Report {
	var r Report
	add := func(sev Severity, node domain.NodeID, format string, args ...any) {
		var ref string
		if !node.IsZero() {
			ref = node.String()
		}
		r.Issues = append(r.Issues, Issue{Severity: sev, Node: ref, Message: fmt.Sprintf(format, args...)})
	}

	nodes := make(map[domain.NodeID]domain.VisualNode, len(g.Nodes))
	defs := make(map[domain.NodeID]domain.NodeTypeDefinition, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
		def, ok := catalog.Lookup(n.NodeType)
		if !ok {
			add(SeverityWarning, n.ID, "unknown node type %s", n.NodeType)
			continue
		}
		defs[n.ID] = def
		if err := schema.ValidateConfig(n.NodeType, n.Config); err != nil {
			add(SeverityError, n.ID, "invalid config: %v", err)
		}
	}

	// Inputs that have an incoming edge, keyed by target and port.
	fed := make(map[domain.NodeID]map[string]bool)
	next := make(map[domain.NodeID][]domain.NodeID)
	for _, e := range g.Edges {
		_, srcOK := nodes[e.Source]
		_, dstOK := nodes[e.Target]
		if !srcOK || !dstOK {
			add(SeverityError, domain.NodeID{}, "edge %s references a missing node (%s -> %s)", e.ID, e.Source, e.Target)
			continue
		}
		if def, ok := defs[e.Source]; ok && registry.Unmatched(def, e.SourceHandle, true) {
			add(SeverityWarning, e.Source, "edge %s leaves from undeclared output %q", e.ID, *e.SourceHandle)
		}
		if def, ok := defs[e.Target]; ok && registry.Unmatched(def, e.TargetHandle, false) {
			add(SeverityWarning, e.Target, "edge %s enters undeclared input %q", e.ID, *e.TargetHandle)
		}

		if fed[e.Target] == nil {
			fed[e.Target] = make(map[string]bool)
		}
		port := domain.GenericPort
		if e.TargetHandle != nil {
			port = *e.TargetHandle
		}
		fed[e.Target][port] = true
		next[e.Source] = append(next[e.Source], e.Target)
	}

	for _, n := range g.Nodes {
		def, ok := defs[n.ID]
		if !ok {
			continue
		}
		for _, p := range def.Inputs {
			if !p.Required || fed[n.ID][p.Name] {
				continue
			}
			// A single-input node fed through the generic port counts as connected.
			if len(def.Inputs) == 1 && fed[n.ID][domain.GenericPort] {
				continue
			}
			add(SeverityError, n.ID, "required input %q is not connected", p.Name)
		}
	}

	starts := g.StartNodes()
	if len(starts) == 0 {
		if len(g.Nodes) > 0 {
			add(SeverityWarning, domain.NodeID{}, "no %s node, the workflow cannot be run from chat", domain.NodeTypeChatInput)
		}
		return r
	}

	// Crawler
	visited := make(map[domain.NodeID]bool, len(g.Nodes))
	queue := make([]domain.NodeID, 0, len(starts))
	for _, s := range starts {
		queue = append(queue, s.ID)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, target := range next[current] {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}
	for _, n := range g.Nodes {
		if !visited[n.ID] {
			add(SeverityWarning, n.ID, "unreachable from any %s node", domain.NodeTypeChatInput)
		}
	}
	return r
}
