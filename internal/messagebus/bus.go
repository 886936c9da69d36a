package messagebus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/konglinxi/resvizcopilot/internal/metrics"
)

// Snapshot is the minimal shape the bus needs from the snapshot store to
// perform the front-end projection: swapping a raw snapshot_id for
// the full object a client renders.
type Snapshot struct {
	ID        string `json:"id"`
	CreatedAt any    `json:"created_at"`
	Data      any    `json:"data"`
	Summary   string `json:"summary"`
}

// SnapshotResolver looks up a snapshot by id for front-end projection.
type SnapshotResolver func(snapshotID string) (Snapshot, bool)

// DefaultQueueDepth is the bounded subscriber queue size used when a Bus
// is constructed without an explicit depth.
const DefaultQueueDepth = 256

// Bus is the single canonical ordered message log. publish_patch
// (Publish) is its only mutation entry point; everything else is a
// read-only query.
type Bus struct {
	mu       sync.Mutex
	messages map[string]*Message
	order    []string

	subOrder []string
	subs     map[string]*subscription

	queueDepth int
	resolver   SnapshotResolver
	metrics    *metrics.BusMetrics
	log        *slog.Logger
}

// Option configures a Bus at construction time.
type Option func(*Bus)

func WithQueueDepth(n int) Option {
	return func(b *Bus) { b.queueDepth = n }
}

func WithSnapshotResolver(r SnapshotResolver) Option {
	return func(b *Bus) { b.resolver = r }
}

// SetSnapshotResolver wires the resolver after construction, for the
// common case where the snapshot store's own constructor needs a Bus
// (as its ActionPublisher) before it can exist to be resolved from.
func (b *Bus) SetSnapshotResolver(r SnapshotResolver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolver = r
}

func WithMetrics(m *metrics.BusMetrics) Option {
	return func(b *Bus) { b.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.log = l }
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		messages:   make(map[string]*Message),
		subs:       make(map[string]*subscription),
		queueDepth: DefaultQueueDepth,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type subscription struct {
	id string
	ch chan OutboundPatch
}

// Subscription is a live handle returned by Subscribe. Callers must call
// Close when done (e.g. on SSE client disconnect) to stop fan-out from
// targeting a dead queue.
type Subscription struct {
	C   <-chan OutboundPatch
	bus *Bus
	id  string
}

func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Subscribe registers a new fan-out target and returns its handle. Each
// SSE connection owns exactly one Subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{id: uuid.NewString(), ch: make(chan OutboundPatch, b.queueDepth)}
	b.subs[sub.id] = sub
	b.subOrder = append(b.subOrder, sub.id)
	b.metrics.SetSubscriberCount(len(b.subs))

	return &Subscription{C: sub.ch, bus: b, id: sub.id}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
		b.metrics.SetSubscriberCount(len(b.subs))
	}
}

// Publish is the sole mutation entry point onto the log. It implements
// the dispatch order, evaluated in order:
//  1. action_title == "finished" ⇒ broadcast only, log untouched.
//  2. rollback ⇒ erase everything after the target, reset it to generating.
//  3. message_id == nil ⇒ create (refusing a second concurrent generating message).
//  4. message_id == BroadcastGenerating ⇒ apply to every generating message.
//  5. otherwise ⇒ apply to the named message.
func (b *Bus) Publish(p Patch) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.ActionTitle != nil && *p.ActionTitle == "finished" {
		b.broadcastLocked(p, "")
		return "", nil
	}

	if p.Rollback {
		return b.rollbackLocked(p)
	}

	if p.MessageID == nil {
		return b.createLocked(p)
	}

	if *p.MessageID == BroadcastGenerating {
		return b.broadcastToGeneratingLocked(p)
	}

	return b.updateLocked(p, *p.MessageID)
}

func (b *Bus) rollbackLocked(p Patch) (string, error) {
	if p.MessageID == nil {
		return "", ErrMessageNotFound
	}
	target := *p.MessageID
	idx := -1
	for i, id := range b.order {
		if id == target {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", ErrMessageNotFound
	}

	deleted := len(b.order) - idx - 1
	for _, id := range b.order[idx+1:] {
		delete(b.messages, id)
	}
	b.order = b.order[:idx+1]

	msg := b.messages[target]
	msg.Thinking = ""
	msg.Content = ""
	msg.Status = StatusGenerating
	msg.UpdatedAt = nowFunc()

	b.log.Info("messagebus: rollback", "message_id", target, "deleted_after", deleted)
	b.broadcastLocked(p, target)
	return target, nil
}

func (b *Bus) createLocked(p Patch) (string, error) {
	if p.Role == nil {
		return "", ErrRoleRequired
	}

	status := StatusCompleted
	if *p.Role == RoleAssistant && !p.Finished {
		status = StatusGenerating
	}
	// Only a message that starts out generating can break the
	// one-generating-message invariant.
	if status == StatusGenerating && b.anyGeneratingLocked() {
		return "", ErrAlreadyGenerating
	}

	now := nowFunc()
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      *p.Role,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyPatch(msg, p)
	// applyPatch may have flipped Status to Completed via Finished; honor
	// that over the role-derived default, but never resurrect Generating
	// once Finished was requested.
	b.messages[msg.ID] = msg
	b.order = append(b.order, msg.ID)
	b.metrics.SetGeneratingCount(b.countGeneratingLocked())

	b.broadcastLocked(p, msg.ID)
	return msg.ID, nil
}

func (b *Bus) broadcastToGeneratingLocked(p Patch) (string, error) {
	for _, id := range b.order {
		msg := b.messages[id]
		if msg.Status == StatusGenerating {
			applyPatch(msg, p)
		}
	}
	b.metrics.SetGeneratingCount(b.countGeneratingLocked())
	last := ""
	if len(b.order) > 0 {
		last = b.order[len(b.order)-1]
	}
	b.broadcastLocked(p, BroadcastGenerating)
	return last, nil
}

func (b *Bus) updateLocked(p Patch, id string) (string, error) {
	msg, ok := b.messages[id]
	if !ok {
		return "", ErrMessageNotFound
	}
	applyPatch(msg, p)
	b.metrics.SetGeneratingCount(b.countGeneratingLocked())
	b.broadcastLocked(p, id)
	return id, nil
}

func (b *Bus) anyGeneratingLocked() bool {
	return b.countGeneratingLocked() > 0
}

func (b *Bus) countGeneratingLocked() int {
	n := 0
	for _, id := range b.order {
		if b.messages[id].Status == StatusGenerating {
			n++
		}
	}
	return n
}

// broadcastLocked builds the outbound (front-end-projected) form once and
// fans it out to every live subscriber in subscribe order, never
// blocking on a slow one.
func (b *Bus) broadcastLocked(p Patch, effectiveID string) {
	out := b.projectLocked(p, effectiveID)
	for _, id := range b.subOrder {
		sub, ok := b.subs[id]
		if !ok {
			continue
		}
		select {
		case sub.ch <- out:
		default:
			b.metrics.ObserveSubscriberDrop()
			b.log.Warn("messagebus: subscriber queue full, dropping patch", "subscriber_id", id)
		}
	}
}

func (b *Bus) projectLocked(p Patch, effectiveID string) OutboundPatch {
	out := OutboundPatch{
		MessageID:      effectiveID,
		Role:           p.Role,
		Publisher:      p.Publisher,
		ThinkingDelta:  p.ThinkingDelta,
		ContentDelta:   p.ContentDelta,
		Title:          p.Title,
		ActionTitle:    p.ActionTitle,
		ActionParams:   p.ActionParams,
		SnapshotID:     p.SnapshotID,
		VisibleNodeIDs: p.VisibleNodeIDs,
		Finished:       p.Finished,
		Rollback:       p.Rollback,
	}
	if p.SnapshotID != nil && b.resolver != nil {
		if snap, ok := b.resolver(*p.SnapshotID); ok {
			out.Snapshot = snap
		}
	}
	return out
}

// GetMessage returns a deep copy of a message by id.
func (b *Bus) GetMessage(id string) (*Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.messages[id]
	if !ok {
		return nil, false
	}
	return msg.clone(), true
}

// GetMessages returns deep copies of every message, in log order.
func (b *Bus) GetMessages() []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Message, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.messages[id].clone())
	}
	return out
}

// GetVisibleMessages implements the visibility filter: a message is
// returned if its VisibleNodeIDs is empty (global) or
// intersects nodeIDs. Callers pass the problem id alone, or the solution
// id plus its parent problem id when filtering for a solution view.
func (b *Bus) GetVisibleMessages(nodeIDs ...string) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Message, 0, len(b.order))
	for _, id := range b.order {
		msg := b.messages[id]
		if msg.isVisibleTo(nodeIDs) {
			out = append(out, msg.clone())
		}
	}
	return out
}

// LastID returns the id of the most recently appended message, or "" if
// the log is empty.
func (b *Bus) LastID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return ""
	}
	return b.order[len(b.order)-1]
}

// RollbackToMessage erases everything strictly after id (used by the
// user-initiated rollback-to endpoint, distinct from the retry engine's
// rollback patches in that it does not reset the target to generating).
// It returns the number of deleted messages.
func (b *Bus) RollbackToMessage(id string) (deleted int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i, mid := range b.order {
		if mid == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, ErrMessageNotFound
	}
	deleted = len(b.order) - idx - 1
	for _, mid := range b.order[idx+1:] {
		delete(b.messages, mid)
	}
	b.order = b.order[:idx+1]
	return deleted, nil
}
