// Package llmclient streams chat completions from an OpenAI-compatible
// endpoint, grounded on pkg/llms/openai.go's SSE reader loop but
// generalized to a reasoning/content delta contract.
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Chunk is one decoded delta off the wire: either reasoning text,
// content text, or a terminal marker.
type Chunk struct {
	Reasoning string
	Content   string
	Done      bool
	Err       error
}

// Client streams completions for a single prompt.
type Client interface {
	// StreamGenerate streams the completion for prompt, returning the
	// full accumulated content once the stream closes. deltas receives
	// every decoded Chunk as it arrives; it may be nil.
	StreamGenerate(ctx context.Context, prompt string, deltas func(Chunk)) (string, error)
}

// Config points the client at an upstream OpenAI-compatible chat
// completions endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

func (c Config) withDefaults() Config {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 0}
	}
	return c
}

// OpenAIClient is the default Client implementation.
type OpenAIClient struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *OpenAIClient {
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIClient{cfg: cfg.withDefaults(), log: log}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamGenerate issues the chat completion request and reads the SSE
// response body line by line, splitting reasoning deltas from content
// deltas: reasoning tokens precede content tokens, and the first
// content token ends the reasoning phase.
func (c *OpenAIClient) StreamGenerate(ctx context.Context, prompt string, deltas func(Chunk)) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:  c.cfg.Model,
		Stream: true,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llmclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.cfg.HTTP.Do(req)
	if err != nil {
		return "", classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", newUpstreamError(resp.StatusCode, string(msg))
	}

	return c.readStream(resp.Body, deltas)
}

func (c *OpenAIClient) readStream(body io.Reader, deltas func(Chunk)) (string, error) {
	reader := bufio.NewReader(body)
	var content strings.Builder

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return content.String(), fmt.Errorf("llmclient: read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		payload := bytes.TrimSpace(line[len("data: "):])
		if string(payload) == "[DONE]" {
			break
		}

		var evt chatStreamEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			c.log.Debug("llmclient: failed to decode stream event", "error", err)
			continue
		}
		if len(evt.Choices) == 0 {
			continue
		}
		delta := evt.Choices[0].Delta
		if delta.ReasoningContent != "" {
			if deltas != nil {
				deltas(Chunk{Reasoning: delta.ReasoningContent})
			}
		}
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if deltas != nil {
				deltas(Chunk{Content: delta.Content})
			}
		}
	}

	if deltas != nil {
		deltas(Chunk{Done: true})
	}
	return content.String(), nil
}

func classifyTransportErr(err error) error {
	return &TransportError{Err: err}
}

// TransportError wraps a failed HTTP round trip. It implements
// IsRetryable so internal/retry.Classify recognizes it without an
// import cycle back into this package.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string     { return fmt.Sprintf("llmclient: transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error     { return e.Err }
func (e *TransportError) IsRetryable() bool { return true }

// UpstreamError wraps a non-200 response from the upstream endpoint.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func newUpstreamError(status int, body string) *UpstreamError {
	return &UpstreamError{StatusCode: status, Body: body}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llmclient: upstream returned %d: %s", e.StatusCode, e.Body)
}

// IsRetryable classifies 429 and 5xx as retryable, the fixed set of
// transient transport failures worth retrying.
func (e *UpstreamError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
