package messagebus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_CreateRefusesConcurrentGeneration(t *testing.T) {
	b := NewBus()

	id, err := b.Publish(Patch{Role: RolePtr(RoleAssistant), ContentDelta: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = b.Publish(Patch{Role: RolePtr(RoleAssistant), ContentDelta: "again"})
	assert.ErrorIs(t, err, ErrAlreadyGenerating)

	// A user message is created as already-completed, so it never
	// collides with the single-writer invariant.
	uid, err := b.Publish(Patch{Role: RolePtr(RoleUser), ContentDelta: "question"})
	require.NoError(t, err)
	msg, ok := b.GetMessage(uid)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, msg.Status)
}

func TestBus_CreateRequiresRole(t *testing.T) {
	b := NewBus()
	_, err := b.Publish(Patch{ContentDelta: "oops"})
	assert.ErrorIs(t, err, ErrRoleRequired)
}

func TestBus_UpdateAppendsDeltasAndAppliesFinished(t *testing.T) {
	b := NewBus()
	id, err := b.Publish(Patch{Role: RolePtr(RoleAssistant)})
	require.NoError(t, err)

	_, err = b.Publish(Patch{MessageID: Str(id), ContentDelta: "Hello, "})
	require.NoError(t, err)
	_, err = b.Publish(Patch{MessageID: Str(id), ContentDelta: "world."})
	require.NoError(t, err)

	msg, ok := b.GetMessage(id)
	require.True(t, ok)
	assert.Equal(t, "Hello, world.", msg.Content)
	assert.Equal(t, StatusGenerating, msg.Status)

	_, err = b.Publish(Patch{MessageID: Str(id), Finished: true})
	require.NoError(t, err)
	msg, _ = b.GetMessage(id)
	assert.Equal(t, StatusCompleted, msg.Status)
}

func TestBus_UpdateUnknownMessageErrors(t *testing.T) {
	b := NewBus()
	_, err := b.Publish(Patch{MessageID: Str("does-not-exist"), ContentDelta: "x"})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestBus_BroadcastToGeneratingSentinel(t *testing.T) {
	b := NewBus()
	id, err := b.Publish(Patch{Role: RolePtr(RoleAssistant)})
	require.NoError(t, err)

	last, err := b.Publish(Patch{MessageID: Str(BroadcastGenerating), Finished: true})
	require.NoError(t, err)
	assert.Equal(t, id, last)

	msg, _ := b.GetMessage(id)
	assert.Equal(t, StatusCompleted, msg.Status)
}

func TestBus_RollbackTruncatesAndResetsTarget(t *testing.T) {
	b := NewBus()
	id1, err := b.Publish(Patch{Role: RolePtr(RoleUser), ContentDelta: "first"})
	require.NoError(t, err)
	_, err = b.Publish(Patch{MessageID: Str(id1), Finished: true})
	require.NoError(t, err)

	id2, err := b.Publish(Patch{Role: RolePtr(RoleAssistant), ContentDelta: "partial answer"})
	require.NoError(t, err)
	_, err = b.Publish(Patch{MessageID: Str(id2), Finished: true})
	require.NoError(t, err)

	id3, err := b.Publish(Patch{Role: RolePtr(RoleAssistant), ContentDelta: "third"})
	require.NoError(t, err)

	rolledTo, err := b.Publish(Patch{MessageID: Str(id2), Rollback: true})
	require.NoError(t, err)
	assert.Equal(t, id2, rolledTo)

	_, ok := b.GetMessage(id3)
	assert.False(t, ok, "messages after the rollback target should be deleted")

	msg, ok := b.GetMessage(id2)
	require.True(t, ok)
	assert.Empty(t, msg.Content)
	assert.Equal(t, StatusGenerating, msg.Status)

	all := b.GetMessages()
	require.Len(t, all, 2)
	assert.Equal(t, id1, all[0].ID)
	assert.Equal(t, id2, all[1].ID)
}

func TestBus_RollbackUnknownIDErrors(t *testing.T) {
	b := NewBus()
	_, err := b.Publish(Patch{MessageID: Str("missing"), Rollback: true})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestBus_VisibilityFilter(t *testing.T) {
	b := NewBus()

	globalID, err := b.Publish(Patch{Role: RolePtr(RoleUser), ContentDelta: "visible everywhere"})
	require.NoError(t, err)

	scopedID, err := b.Publish(Patch{
		Role:           RolePtr(RoleUser),
		ContentDelta:   "scoped",
		VisibleNodeIDs: []string{"node-a"},
	})
	require.NoError(t, err)

	visibleToA := b.GetVisibleMessages("node-a")
	ids := make([]string, 0, len(visibleToA))
	for _, m := range visibleToA {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{globalID, scopedID}, ids)

	visibleToB := b.GetVisibleMessages("node-b")
	ids = ids[:0]
	for _, m := range visibleToB {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{globalID}, ids)
}

func TestBus_SubscribeReceivesBroadcastAndUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()

	id, err := b.Publish(Patch{Role: RolePtr(RoleAssistant), ContentDelta: "chunk"})
	require.NoError(t, err)

	select {
	case out := <-sub.C:
		assert.Equal(t, id, out.MessageID)
		assert.Equal(t, "chunk", out.ContentDelta)
	default:
		t.Fatal("expected a patch to be delivered to the subscriber")
	}

	sub.Close()

	_, err = b.Publish(Patch{MessageID: Str(id), ContentDelta: "more"})
	require.NoError(t, err)
}

func TestBus_SubscriberQueueFullDropsWithoutBlocking(t *testing.T) {
	b := NewBus(WithQueueDepth(1))
	sub := b.Subscribe()

	id, err := b.Publish(Patch{Role: RolePtr(RoleAssistant), ContentDelta: "a"})
	require.NoError(t, err)

	// Second publish should not block even though the subscriber's
	// single-slot queue is already full and nobody is draining it.
	_, err = b.Publish(Patch{MessageID: Str(id), ContentDelta: "b"})
	require.NoError(t, err)

	out := <-sub.C
	assert.Equal(t, id, out.MessageID)
}

func TestBus_SnapshotResolverProjectsFullSnapshot(t *testing.T) {
	resolved := Snapshot{ID: "snap-1", Summary: "a tree"}
	b := NewBus(WithSnapshotResolver(func(id string) (Snapshot, bool) {
		if id == "snap-1" {
			return resolved, true
		}
		return Snapshot{}, false
	}))

	sub := b.Subscribe()
	_, err := b.Publish(Patch{Role: RolePtr(RoleAssistant), SnapshotID: Str("snap-1")})
	require.NoError(t, err)

	out := <-sub.C
	require.NotNil(t, out.Snapshot)
	assert.Equal(t, resolved, out.Snapshot)
}
