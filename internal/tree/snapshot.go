package tree

import "time"

// Snapshot is an immutable forest of problem roots, frozen at commit
// time. Each commit deep-copies the whole forest, keeping node ids, so
// no node is shared between snapshots; this type itself never mutates
// after creation.
type Snapshot struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Roots     []*Problem `json:"roots"`
}

// View is the front-end-facing projection of a Snapshot: the
// {id, created_at, data, summary} shape a client renders.
type View struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Data      []*Problem `json:"data"`
	Summary   string     `json:"summary"`
}
