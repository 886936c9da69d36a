package agent

import (
	"context"

	"github.com/konglinxi/resvizcopilot/internal/llmclient"
	"github.com/konglinxi/resvizcopilot/internal/messagebus"
	"github.com/konglinxi/resvizcopilot/internal/retry"
	"github.com/konglinxi/resvizcopilot/internal/tree"
	"time"
)

// scriptedClient returns one full response per call, in order, looping
// on the last entry if exhausted. errs, if non-nil at an index, is
// returned instead of streaming a response.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (c *scriptedClient) StreamGenerate(ctx context.Context, prompt string, deltas func(llmclient.Chunk)) (string, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	var resp string
	switch {
	case i < len(c.responses):
		resp = c.responses[i]
	case len(c.responses) > 0:
		resp = c.responses[len(c.responses)-1]
	}
	if deltas != nil {
		deltas(llmclient.Chunk{Content: resp})
		deltas(llmclient.Chunk{Done: true})
	}
	return resp, nil
}

func newTestBase(nodeID string, responses ...string) (*Base, *tree.Store, *messagebus.Bus) {
	bus := messagebus.NewBus()
	store := tree.NewStore(NewTreeActionPublisher(bus))
	gen := llmclient.NewGenerator(&scriptedClient{responses: responses}, bus)
	re := retry.New(retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, bus, nil, nil)
	return NewBase(nodeID, store, bus, gen, re, nil), store, bus
}
