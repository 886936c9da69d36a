package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/konglinxi/resvizcopilot/internal/llmclient"
	"github.com/konglinxi/resvizcopilot/internal/messagebus"
	"github.com/konglinxi/resvizcopilot/internal/retry"
	"github.com/konglinxi/resvizcopilot/internal/tree"
	"github.com/konglinxi/resvizcopilot/internal/xmlfrag"
)

// Params carries the per-call node context a user message or agent run
// is scoped to. Either field may be empty.
type Params struct {
	ProblemID       string
	SolutionID      string
	UserRequirement string
}

func (p Params) visibleNodeIDs() []string {
	var ids []string
	if p.ProblemID != "" {
		ids = append(ids, p.ProblemID)
	}
	if p.SolutionID != "" {
		ids = append(ids, p.SolutionID)
	}
	return ids
}

// TaskResult records how the last process_user_message run ended.
type TaskResult struct {
	Status    string // "success" or "error"
	Error     string
	ErrorType string
}

// Process is implemented by the concrete agents (AutoResearchAgent,
// ChatAgent) and invoked as the background task body by Base.
type Process func(ctx context.Context, content string, params Params) error

// Base implements the lifecycle every agent shares: publishing the
// triggering user message, running the agent's own logic as a
// cancellable background task, bracketing it with start/finish patches,
// and the call-LLM/execute-action helpers every prompt-driven step uses.
type Base struct {
	NodeID string // the problem/solution id this agent is responsible for
	Store  *tree.Store
	Bus    *messagebus.Bus
	Gen    *llmclient.Generator
	Retry  *retry.Engine
	Log    *slog.Logger

	// Process is called from the background task process_user_message
	// spawns. It must be set before the first call.
	Process Process

	mu         sync.Mutex
	cancel     context.CancelFunc
	running    bool
	lastResult TaskResult
}

// NewBase constructs a Base. Process must be assigned by the caller
// before ProcessUserMessage is first invoked.
func NewBase(nodeID string, store *tree.Store, bus *messagebus.Bus, gen *llmclient.Generator, re *retry.Engine, log *slog.Logger) *Base {
	if log == nil {
		log = slog.Default()
	}
	return &Base{NodeID: nodeID, Store: store, Bus: bus, Gen: gen, Retry: re, Log: log}
}

// IsProcessing reports whether a background task is currently running.
func (b *Base) IsProcessing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// GetLastTaskResult returns how the most recent run ended.
func (b *Base) GetLastTaskResult() TaskResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastResult
}

// ProcessUserMessage publishes the triggering user message and spawns
// the agent's own processing as a background task.
func (b *Base) ProcessUserMessage(content, title string, params Params) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("agent %s is already processing", b.NodeID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.running = true
	b.mu.Unlock()

	role := messagebus.RolePtr(messagebus.RoleUser)
	if _, err := b.Bus.Publish(messagebus.Patch{
		Role:           role,
		Title:          messagebus.Str(title),
		ContentDelta:   content,
		VisibleNodeIDs: params.visibleNodeIDs(),
		Finished:       true,
	}); err != nil {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		return err
	}

	go b.runTask(ctx, content, params)
	return nil
}

// runTask executes Process, brackets it with the terminal "finished"
// patch required regardless of how the task ends, and records the
// outcome for GetLastTaskResult.
func (b *Base) runTask(ctx context.Context, content string, params Params) {
	defer func() {
		b.mu.Lock()
		b.running = false
		b.cancel = nil
		b.mu.Unlock()

		b.Bus.Publish(messagebus.Patch{
			MessageID:      messagebus.Str(messagebus.BroadcastGenerating),
			Role:           messagebus.RolePtr(messagebus.RoleAssistant),
			Publisher:      messagebus.Str(b.NodeID),
			VisibleNodeIDs: []string{messagebus.BroadcastGenerating},
			Title:          messagebus.Str("任务已完成"),
			ContentDelta:   "任务已完成\n",
			ActionTitle:    messagebus.Str("finished"),
			Finished:       true,
		})
	}()

	err := b.Process(ctx, content, params)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case ctx.Err() == context.Canceled:
		b.Bus.Publish(messagebus.Patch{
			MessageID:    messagebus.Str(messagebus.BroadcastGenerating),
			ContentDelta: "\n【用户中断】",
			Finished:     true,
		})
		b.lastResult = TaskResult{Status: "success"}
	case err != nil:
		b.lastResult = TaskResult{Status: "error", Error: err.Error(), ErrorType: fmt.Sprintf("%T", err)}
	default:
		b.lastResult = TaskResult{Status: "success"}
	}
}

// StopProcessing cancels the running task, if any, and reports whether
// it actually stopped something.
func (b *Base) StopProcessing() bool {
	b.mu.Lock()
	cancel := b.cancel
	running := b.running
	b.mu.Unlock()
	if !running || cancel == nil {
		return false
	}
	cancel()
	return true
}

// CallLLMWithRetry emits a fresh generating assistant message, streams
// the prompt into it without publishing content deltas, extracts,
// parses and validates the <response> fragment, and replaces the
// message's content with the validated object's serialization. If
// schema is nil, the raw streamed string is returned instead and no
// extraction/validation happens.
func (b *Base) CallLLMWithRetry(ctx context.Context, prompt, title string, params Params, schema xmlfrag.Schema) (any, error) {
	messageID, err := b.Bus.Publish(messagebus.Patch{
		Role:           messagebus.RolePtr(messagebus.RoleAssistant),
		Publisher:      messagebus.Str(b.NodeID),
		Title:          messagebus.Str(title),
		VisibleNodeIDs: params.visibleNodeIDs(),
	})
	if err != nil {
		return nil, err
	}

	opts := retry.ExecuteOptions{
		RollbackMessageID: messageID,
		Publisher:         b.NodeID,
		VisibleNodeIDs:    params.visibleNodeIDs(),
	}

	if schema == nil {
		var raw string
		execErr := b.Retry.Execute(ctx, title, func(ctx context.Context, attempt int) error {
			full, streamErr := b.Gen.StreamGenerate(ctx, prompt, messageID, true)
			if streamErr != nil {
				return streamErr
			}
			raw = full
			return nil
		}, opts)
		if execErr != nil {
			return nil, execErr
		}
		return raw, nil
	}

	var validated any
	execErr := b.Retry.Execute(ctx, title, func(ctx context.Context, attempt int) error {
		full, streamErr := b.Gen.StreamGenerate(ctx, prompt, messageID, false)
		if streamErr != nil {
			return streamErr
		}
		fragment, ok := xmlfrag.Extract(full, "response")
		if !ok {
			return &xmlfrag.ValidationError{Msg: "no <response> fragment found in model output"}
		}
		mapping, parseErr := xmlfrag.Parse(fragment)
		if parseErr != nil {
			return parseErr
		}
		value, validateErr := xmlfrag.Validate(mapping, schema)
		if validateErr != nil {
			return validateErr
		}
		validated = value
		return nil
	}, opts)
	if execErr != nil {
		return nil, execErr
	}

	if serializable, ok := validated.(interface{ ToContent() string }); ok {
		if _, err := b.Bus.Publish(messagebus.Patch{
			MessageID:    messagebus.Str(messageID),
			ContentDelta: serializable.ToContent(),
		}); err != nil {
			b.Log.Warn("call_llm_with_retry: failed to publish replacement content", "error", err)
		}
	}
	return validated, nil
}

// ActionFunc performs a tree-store command and returns its result.
type ActionFunc func() (tree.CommandResult, error)

// ExecuteAction brackets a store command with start/completion (or
// failure) patches.
func (b *Base) ExecuteAction(actionName string, params Params, fn ActionFunc) (tree.CommandResult, error) {
	messageID, err := b.Bus.Publish(messagebus.Patch{
		Role:           messagebus.RolePtr(messagebus.RoleAssistant),
		Publisher:      messagebus.Str(b.NodeID),
		Title:          messagebus.Str("正在进行 " + actionName),
		VisibleNodeIDs: params.visibleNodeIDs(),
	})
	if err != nil {
		return tree.CommandResult{}, err
	}

	result, fnErr := fn()
	if fnErr != nil {
		b.Bus.Publish(messagebus.Patch{
			MessageID:    messagebus.Str(messageID),
			Title:        messagebus.Str(actionName + " 执行失败"),
			ContentDelta: "执行失败: " + fnErr.Error() + "\n",
			Finished:     true,
		})
		return result, fnErr
	}

	patch := messagebus.Patch{
		MessageID:    messagebus.Str(messageID),
		Title:        messagebus.Str(actionName + " 已成功完成"),
		ActionTitle:  messagebus.Str(actionName),
		ActionParams: result.Data,
		ContentDelta: "\n执行结果: " + result.Message + "\n",
		Finished:     true,
	}
	if result.SnapshotID != "" {
		patch.SnapshotID = messagebus.Str(result.SnapshotID)
	}
	if _, err := b.Bus.Publish(patch); err != nil {
		b.Log.Warn("execute_action: failed to publish completion patch", "error", err)
	}
	return result, nil
}

// EnvironmentInfo builds the context bundle CallLLMWithRetry's prompts
// embed.
func (b *Base) EnvironmentInfo(problemID, userRequirement string) (EnvironmentInfo, error) {
	return buildEnvironmentInfo(b.Store, problemID, userRequirement)
}

// treeActionPublisher bridges tree.Store's narrow ActionPublisher
// callback onto the message bus, implementing the command decorator's
// publish step: a user-role, finished message titled with the
// command's result, carrying the action name and payload.
type treeActionPublisher struct {
	bus *messagebus.Bus
}

// NewTreeActionPublisher adapts bus to tree.ActionPublisher.
func NewTreeActionPublisher(bus *messagebus.Bus) tree.ActionPublisher {
	return &treeActionPublisher{bus: bus}
}

func (p *treeActionPublisher) PublishAction(action string, result tree.CommandResult) {
	patch := messagebus.Patch{
		Role:         messagebus.RolePtr(messagebus.RoleUser),
		Title:        messagebus.Str(result.Message),
		ActionTitle:  messagebus.Str(action),
		ActionParams: result.Data,
		Finished:     true,
	}
	if result.Success && result.SnapshotID != "" {
		patch.SnapshotID = messagebus.Str(result.SnapshotID)
	}
	p.bus.Publish(patch)
}
