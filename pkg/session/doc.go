/*
Package session implements the edit session of a workflow.

State is an immutable value: AddNode, UpdateNodeConfig, DeleteNode, Connect and the other
transition functions take a State and return a new one, leaving the input untouched.
Session applies those transitions one at a time, talks to the backend to load and save,
and notifies listeners. Manager tracks open sessions, serializes access to the same workflow
(optionally across processes with a distributed lock) and persists unsaved drafts.
*/
package session
