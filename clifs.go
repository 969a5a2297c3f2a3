// Package clifs contains core domain types and interfaces for the clifs
// in-memory filesystem: caller identity, the error taxonomy shared by the tree
// engine and its host adapters, and the declarative node requests used to
// seed a tree at startup.
package clifs

// Caller is the identity of the process issuing a filesystem request as
// supplied by the host per request. New entries are owned by the caller.
type Caller struct {
	UID uint32
	GID uint32
}
