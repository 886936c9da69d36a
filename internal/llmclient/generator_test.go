package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konglinxi/resvizcopilot/internal/messagebus"
)

type fakeClient struct {
	chunks []Chunk
	err    error
	full   string
}

func (f *fakeClient) StreamGenerate(ctx context.Context, prompt string, deltas func(Chunk)) (string, error) {
	for _, c := range f.chunks {
		if deltas != nil {
			deltas(c)
		}
	}
	return f.full, f.err
}

func TestGenerator_PublishesDeltasAndFinishes(t *testing.T) {
	bus := messagebus.NewBus()
	id, err := bus.Publish(messagebus.Patch{Role: messagebus.RolePtr(messagebus.RoleAssistant)})
	require.NoError(t, err)

	fc := &fakeClient{
		chunks: []Chunk{
			{Reasoning: "thinking"},
			{Content: "hello"},
			{Done: true},
		},
		full: "hello",
	}
	gen := NewGenerator(fc, bus)

	full, err := gen.StreamGenerate(context.Background(), "prompt", id, true)
	require.NoError(t, err)
	assert.Equal(t, "hello", full)

	msg, ok := bus.GetMessage(id)
	require.True(t, ok)
	assert.Equal(t, "thinking", msg.Thinking)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, messagebus.StatusCompleted, msg.Status)
}

func TestGenerator_SuppressesContentWhenPublishContentFalse(t *testing.T) {
	bus := messagebus.NewBus()
	id, err := bus.Publish(messagebus.Patch{Role: messagebus.RolePtr(messagebus.RoleAssistant)})
	require.NoError(t, err)

	fc := &fakeClient{chunks: []Chunk{{Content: "<response>x</response>"}}, full: "<response>x</response>"}
	gen := NewGenerator(fc, bus)

	full, err := gen.StreamGenerate(context.Background(), "prompt", id, false)
	require.NoError(t, err)
	assert.Equal(t, "<response>x</response>", full)

	msg, _ := bus.GetMessage(id)
	assert.Empty(t, msg.Content, "content should be suppressed, only accumulated in the return value")
}

func TestGenerator_ErrorDoesNotPublishFinished(t *testing.T) {
	bus := messagebus.NewBus()
	id, err := bus.Publish(messagebus.Patch{Role: messagebus.RolePtr(messagebus.RoleAssistant)})
	require.NoError(t, err)

	fc := &fakeClient{err: errors.New("boom")}
	gen := NewGenerator(fc, bus)

	_, err = gen.StreamGenerate(context.Background(), "prompt", id, true)
	require.Error(t, err)

	msg, _ := bus.GetMessage(id)
	assert.Equal(t, messagebus.StatusGenerating, msg.Status, "an error must leave the message generating for the retry engine to roll back")
}
