package tree

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CommandResult is the {success, message, snapshot_id, data} package
// handed both to the caller and to the action publisher.
type CommandResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// ActionPublisher receives the user-role action message every command
// emits, kept as a narrow callback interface so this package never
// needs to know about messagebus's Patch wire shape.
type ActionPublisher interface {
	PublishAction(action string, result CommandResult)
}

// noopPublisher is used when a Store is constructed without one, e.g.
// in tests that only exercise the tree's own invariants.
type noopPublisher struct{}

func (noopPublisher) PublishAction(string, CommandResult) {}

// Store is the single-writer, many-reader snapshot store: a single
// distinguished current snapshot that commands advance by
// copy-on-write, with every prior snapshot kept reachable for as long
// as the process runs.
type Store struct {
	mu        sync.Mutex
	snapshots map[string]*Snapshot
	order     []string
	currentID string
	publisher ActionPublisher

	// nowFunc and idFunc are indirected for deterministic tests.
	nowFunc func() time.Time
	idFunc  func() string
}

// NewStore creates a Store seeded with one empty snapshot.
func NewStore(publisher ActionPublisher) *Store {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	s := &Store{
		snapshots: make(map[string]*Snapshot),
		publisher: publisher,
		nowFunc:   time.Now,
		idFunc:    uuid.NewString,
	}
	initial := &Snapshot{ID: s.idFunc(), CreatedAt: s.nowFunc(), Roots: nil}
	s.snapshots[initial.ID] = initial
	s.order = append(s.order, initial.ID)
	s.currentID = initial.ID
	return s
}

// InitialSnapshotID returns the id of the empty snapshot a Store is
// seeded with, used by rollback-to-message to restore the tree when no
// commit happened at or before the rollback target.
func (s *Store) InitialSnapshotID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order[0]
}

// CurrentSnapshotID returns the id of the current snapshot.
func (s *Store) CurrentSnapshotID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Snapshot returns a copy of the snapshot with the given id.
func (s *Store) Snapshot(id string) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, false
	}
	return &Snapshot{ID: snap.ID, CreatedAt: snap.CreatedAt, Roots: cloneRoots(snap.Roots)}
}

// View resolves a snapshot to its front-end projection, implementing
// the SnapshotResolver messagebus expects for front-end projection.
func (s *Store) View(id string) (View, bool) {
	snap, ok := s.Snapshot(id)
	if !ok {
		return View{}, false
	}
	return View{ID: snap.ID, CreatedAt: snap.CreatedAt, Data: snap.Roots, Summary: s.summarize(snap.Roots)}, true
}

func (s *Store) summarize(roots []*Problem) string {
	if len(roots) == 0 {
		return "空白研究树"
	}
	if len(roots) == 1 {
		return roots[0].Title
	}
	return roots[0].Title + " 等"
}

// currentRootsLocked returns the deep-cloned roots of the current
// snapshot. Must be called with s.mu held.
func (s *Store) currentRootsLocked() []*Problem {
	return cloneRoots(s.snapshots[s.currentID].Roots)
}

// mutate implements the commit protocol: clone, apply, commit a new
// snapshot, publish the action message. fn receives the
// cloned roots and returns the (possibly restructured) new roots plus
// any command-specific result payload.
func (s *Store) mutate(action string, fn func(roots []*Problem) ([]*Problem, any, error)) (CommandResult, error) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	newRoots, data, err := fn(roots)
	if err != nil {
		s.mu.Unlock()
		result := CommandResult{Success: false, Message: err.Error()}
		s.publisher.PublishAction(action, result)
		return result, err
	}

	snap := &Snapshot{ID: s.idFunc(), CreatedAt: s.nowFunc(), Roots: newRoots}
	s.snapshots[snap.ID] = snap
	s.order = append(s.order, snap.ID)
	s.currentID = snap.ID
	s.mu.Unlock()

	result := CommandResult{Success: true, Message: "操作成功: " + action, SnapshotID: snap.ID, Data: data}
	s.publisher.PublishAction(action, result)
	return result, nil
}

// RestoreTo resets the current snapshot pointer to id without creating
// a new snapshot, used by the user-initiated rollback-to-message
// endpoint.
func (s *Store) RestoreTo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[id]; !ok {
		return notFound("snapshot", id)
	}
	s.currentID = id
	return nil
}

// SnapshotIDsUpTo returns every committed snapshot id at or before id,
// in commit order, used to assemble the snapshot history a project save
// persists.
func (s *Store) SnapshotIDsUpTo(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.order))
	for _, sid := range s.order {
		out = append(out, sid)
		if sid == id {
			break
		}
	}
	return out
}
