package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func baseGraph() VisualGraph {
	return VisualGraph{
		Nodes: []VisualNode{
			{ID: Durable(1), Position: Position{X: 10, Y: 20}, Label: "Input", NodeType: NodeTypeChatInput, Config: map[string]any{}},
			{ID: Durable(2), Position: Position{X: 200, Y: 20}, Label: "LLM", NodeType: NodeTypeLLM, Config: map[string]any{"provider": "openai"}},
		},
		Edges: []VisualEdge{
			{ID: Durable(7), Source: Durable(1), Target: Durable(2), SourceHandle: StringPtr("output"), TargetHandle: StringPtr("user_prompt")},
		},
	}
}

func TestDiffGraphs(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(g *VisualGraph)
		wantDiff *GraphDiff
	}{
		{
			name:     "No Changes",
			mutate:   func(g *VisualGraph) {},
			wantDiff: nil,
		},
		{
			name: "Port Annotation Is Not An Edit",
			mutate: func(g *VisualGraph) {
				g.Nodes[0].InputPorts = []PortName{"message"}
				g.Nodes[0].Category = CategoryInputOutput
			},
			wantDiff: nil,
		},
		{
			name: "Nil And Empty Config Are Equal",
			mutate: func(g *VisualGraph) {
				g.Nodes[0].Config = nil
			},
			wantDiff: nil,
		},
		{
			name: "Moved Node",
			mutate: func(g *VisualGraph) {
				g.Nodes[1].Position = Position{X: 250, Y: 40}
			},
			wantDiff: &GraphDiff{ChangedNodes: []NodeID{Durable(2)}},
		},
		{
			name: "Config Change",
			mutate: func(g *VisualGraph) {
				g.Nodes[1].Config = map[string]any{"provider": "anthropic", "model_name": ""}
			},
			wantDiff: &GraphDiff{ChangedNodes: []NodeID{Durable(2)}},
		},
		{
			name: "Added Node And Edge",
			mutate: func(g *VisualGraph) {
				g.Nodes = append(g.Nodes, VisualNode{ID: Temporary(1), NodeType: NodeTypeChatOutput})
				g.Edges = append(g.Edges, VisualEdge{ID: Temporary(2), Source: Durable(2), Target: Temporary(1)})
			},
			wantDiff: &GraphDiff{
				AddedNodes: []NodeID{Temporary(1)},
				AddedEdges: []NodeID{Temporary(2)},
			},
		},
		{
			name: "Removed Node Cascades Edge",
			mutate: func(g *VisualGraph) {
				g.Nodes = g.Nodes[:1]
				g.Edges = nil
			},
			wantDiff: &GraphDiff{
				RemovedNodes: []NodeID{Durable(2)},
				RemovedEdges: []NodeID{Durable(7)},
			},
		},
		{
			name: "Handle Change",
			mutate: func(g *VisualGraph) {
				g.Edges[0].TargetHandle = nil
			},
			wantDiff: &GraphDiff{ChangedEdges: []NodeID{Durable(7)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := baseGraph()
			current := snapshot.Clone()
			tt.mutate(&current)

			got := DiffGraphs(snapshot, current)

			if tt.wantDiff == nil {
				if got != nil && !got.IsEmpty() {
					t.Errorf("expected nil/empty diff, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected diff, got nil")
			}
			if !reflect.DeepEqual(got, tt.wantDiff) {
				t.Errorf("diff mismatch:\n got  %+v\n want %+v", got, tt.wantDiff)
			}
		})
	}
}

func TestGraphDiff_EntityState(t *testing.T) {
	snapshot := baseGraph()
	current := snapshot.Clone()
	current.Nodes[1].Label = "Renamed"
	current.Nodes = append(current.Nodes, VisualNode{ID: Temporary(1), NodeType: NodeTypeParser})

	diff := DiffGraphs(snapshot, current)

	if got := diff.NodeState(Durable(1)); got != EntityClean {
		t.Errorf("node 1: expected clean, got %s", got)
	}
	if got := diff.NodeState(Durable(2)); got != EntityDirty {
		t.Errorf("node 2: expected dirty, got %s", got)
	}
	if got := diff.NodeState(Temporary(1)); got != EntityDirty {
		t.Errorf("node -1: expected dirty, got %s", got)
	}
	if got := diff.EdgeState(Durable(7)); got != EntityClean {
		t.Errorf("edge 7: expected clean, got %s", got)
	}
	if !diff.Structural() {
		t.Error("expected structural diff")
	}

	var nilDiff *GraphDiff
	if got := nilDiff.NodeState(Durable(1)); got != EntityClean {
		t.Errorf("nil diff: expected clean, got %s", got)
	}
}

func TestGraphDiff_JSON(t *testing.T) {
	diff := &GraphDiff{AddedNodes: []NodeID{Temporary(3)}, ChangedEdges: []NodeID{Durable(9)}}

	b, err := json.Marshal(diff)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"added_nodes":["-3"]`) {
		t.Errorf("expected temporary id rendered as string, got %s", s)
	}
	if strings.Contains(s, "removed_nodes") {
		t.Errorf("expected empty fields omitted, got %s", s)
	}
}
