/*
Package flowdeck is the client-side core of a visual workflow editor.

It loads a persisted graph from a remote workflow backend, maps it into an editable visual
graph, tracks local edits optimistically and saves them back as a change set. Saved
workflows can be executed remotely; the run is observed by polling its status until it
reaches a terminal state.

# Concept

The backend owns workflows and runs them. flowdeck owns everything in between: the node
type catalog, the visual graph with its temporary ids for unsaved nodes, dirty tracking
against the last loaded snapshot, and the polling state machine of each run. Every
collaborator is a port (see pkg/ports) so the editor can be embedded behind an HTTP
client, an in-memory backend for tests, or anything else that speaks the same contract.

# Usage

	editor := flowdeck.New(http.NewClient("http://localhost:8000/api/v1"),
		flowdeck.WithDraftStore(file.New("")),
		flowdeck.WithLogger(logger),
	)
	defer editor.Close()

	if _, err := editor.LoadNodeTypes(ctx); err != nil {
		log.Fatal(err)
	}

	s, err := editor.Open(ctx, 42)
	if err != nil {
		log.Fatal(err)
	}

	// Canvas gestures become session transitions.
	cv := editor.Canvas(s)
	id, _ := cv.Drop(ctx, canvas.Drop{NodeType: "LLM_NODE", Position: domain.Position{X: 200, Y: 80}})
	_ = s.UpdateNodeConfig(id, map[string]any{"provider": "anthropic"})

	if _, err := editor.Save(ctx, s); err != nil {
		log.Fatal(err)
	}

	run, err := editor.Run(ctx, s, "hello")
	if err != nil {
		log.Fatal(err)
	}
	snapshot, _ := run.Wait(ctx)
	fmt.Println(snapshot.Status)

# Packages

  - pkg/domain: data model, tagged node ids, run states and the error taxonomy.
  - pkg/registry: node type catalog loaded once per editor.
  - pkg/mapper: persisted graph to visual graph and back.
  - pkg/session: immutable edit state, transitions, save and draft persistence.
  - pkg/orchestrator: run submission and status polling.
  - pkg/canvas: canvas gestures translated into session transitions.
  - pkg/adapters: HTTP client and handler, in-memory backend, file and Redis draft stores, MCP server.
*/
package flowdeck
