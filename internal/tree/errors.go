package tree

import "fmt"

// NotFoundError is the "logical" failure class the HTTP layer maps to
// 404 — a referenced node id does not resolve in the current snapshot.
type NotFoundError struct {
	Kind string // "problem" | "solution" | "node" | "snapshot"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tree: %s %q not found", e.Kind, e.ID)
}

// InvariantError is the "commanding" failure class the HTTP layer maps
// to 400 — the requested mutation would violate a tree invariant.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return e.Msg }

func notFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

func invariant(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}
