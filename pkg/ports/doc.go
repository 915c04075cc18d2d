/*
Package ports defines the driven ports (interfaces) of the flowdeck editor core.

These interfaces decouple the editor from external implementations, allowing
it to work against a remote HTTP backend, an in-memory backend, or any draft storage.

# Key Interfaces

  - WorkflowAPI: The remote workflow backend (catalog, CRUD, execution, status).
  - NodeTypeSource: The subset of WorkflowAPI the node type registry needs.
  - Scheduler: Deferred calls used by execution polling (real or virtual time).
  - DraftStore: Persists unsaved edit sessions.
  - DistributedLocker: Coordinates concurrent access to the same workflow across processes.
*/
package ports
