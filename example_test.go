package flowdeck_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/flowdeck"
	"github.com/aretw0/flowdeck/pkg/adapters/memory"
	"github.com/aretw0/flowdeck/pkg/canvas"
	"github.com/aretw0/flowdeck/pkg/domain"
)

// ExampleEditor builds a two-node chat workflow on the canvas, saves it and runs it
// against the in-memory backend.
func ExampleEditor() {
	ctx := context.Background()
	editor := flowdeck.New(memory.NewBackend(), flowdeck.WithPollInterval(time.Millisecond))
	defer editor.Close()

	if _, err := editor.LoadNodeTypes(ctx); err != nil {
		log.Fatal(err)
	}

	s := editor.Start("Echo", "replies with the chat message")
	cv := editor.Canvas(s)
	in, err := cv.Drop(ctx, canvas.Drop{NodeType: domain.NodeTypeChatInput, Position: domain.Position{X: 0, Y: 0}})
	if err != nil {
		log.Fatal(err)
	}
	out, err := cv.Drop(ctx, canvas.Drop{NodeType: domain.NodeTypeChatOutput, Position: domain.Position{X: 300, Y: 0}})
	if err != nil {
		log.Fatal(err)
	}
	if _, err := cv.Connect(canvas.Connection{Source: in, Target: out}); err != nil {
		log.Fatal(err)
	}
	fmt.Println("dirty before save:", s.State().IsDirty())

	if _, err := editor.Save(ctx, s); err != nil {
		log.Fatal(err)
	}
	fmt.Println("dirty after save:", s.State().IsDirty())

	run, err := editor.Run(ctx, s, "hello")
	if err != nil {
		log.Fatal(err)
	}
	snap, err := run.Wait(ctx)
	if err != nil {
		log.Fatal(err)
	}
	last := snap.ExecutionOrder[len(snap.ExecutionOrder)-1]
	fmt.Println("status:", snap.Status)
	fmt.Println("reply:", snap.Nodes[last].OutputData["message"])

	// Output:
	// dirty before save: true
	// dirty after save: false
	// status: completed
	// reply: hello
}
