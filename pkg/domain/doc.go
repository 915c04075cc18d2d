/*
Package domain contains the core models shared by the flowdeck editor.

It defines the persisted graph as the workflow backend stores it, the visual graph the editor
mutates, the identifiers that bridge the two, execution runs, and the error taxonomy. This
package is kept pure and free of I/O so mappers, sessions and adapters can all depend on it.

# Key Entities

  - PersistedGraph: backend-owned vertices and edges with durable integer identifiers.
  - VisualGraph: the editable graph of VisualNode and VisualEdge values keyed by NodeID.
  - NodeID: a tagged identifier, either Durable (from the backend) or Temporary (session-local).
  - NodeTypeDefinition: an entry of the node type catalog with its named ports.
  - ExecutionRun: one execution attempt of a saved graph, advanced by polling.
*/
package domain
