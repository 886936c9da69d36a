package llmclient

import (
	"context"

	"github.com/konglinxi/resvizcopilot/internal/messagebus"
)

// Generator adapts a Client onto the message bus, implementing
// the streaming patch-emission contract: reasoning tokens precede
// content tokens, and a finished patch only fires on a clean close.
type Generator struct {
	client Client
	bus    *messagebus.Bus
}

func NewGenerator(client Client, bus *messagebus.Bus) *Generator {
	return &Generator{client: client, bus: bus}
}

// StreamGenerate streams prompt's completion into messageID. Reasoning
// deltas are always published as thinking_delta patches. Content deltas
// are published as content_delta patches unless publishContent is
// false, in which case they are accumulated but not published — the
// caller is expected to publish a single replacement patch once
// post-processing (parse/validate) succeeds. A {message_id, finished:
// true} patch is emitted only once the stream closes without error.
func (g *Generator) StreamGenerate(ctx context.Context, prompt, messageID string, publishContent bool) (string, error) {
	full, err := g.client.StreamGenerate(ctx, prompt, func(c Chunk) {
		if c.Done {
			return
		}
		if c.Reasoning != "" {
			g.bus.Publish(messagebus.Patch{
				MessageID:     messagebus.Str(messageID),
				ThinkingDelta: c.Reasoning,
			})
		}
		if c.Content != "" && publishContent {
			g.bus.Publish(messagebus.Patch{
				MessageID:    messagebus.Str(messageID),
				ContentDelta: c.Content,
			})
		}
	})

	// A finished patch only on success: an error leaves the message
	// generating so the retry engine's rollback-and-retry can act on it.
	if err == nil {
		g.bus.Publish(messagebus.Patch{
			MessageID: messagebus.Str(messageID),
			Finished:  true,
		})
	}

	return full, err
}
