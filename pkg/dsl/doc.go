/*
Package dsl builds workflow graphs in Go.

It is used to seed backends and to write fixtures without spelling out vertex and edge
ids by hand. Nodes are referenced by name; ids are assigned in the order nodes were added.

Example usage:

	g, err := dsl.New("Support").
		Describe("Answers product questions").
		Add("ask").Type(domain.NodeTypeChatInput).Label("Question").Go("llm").
		Add("llm").Type(domain.NodeTypeLLM).Set("provider", "openai").Go("answer").
		Add("answer").Type(domain.NodeTypeChatOutput).
		Build(1)

	backend.Put(g)

Payload returns the same graph as a change set for ports.WorkflowAPI.CreateWorkflow.
*/
package dsl
