package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konglinxi/resvizcopilot/internal/messagebus"
	"github.com/konglinxi/resvizcopilot/internal/tree"
	"github.com/konglinxi/resvizcopilot/internal/xmlfrag"
)

func TestBase_CallLLMWithRetry_NoSchemaReturnsRawString(t *testing.T) {
	base, _, _ := newTestBase("node-1", "plain text reply")
	out, err := base.CallLLMWithRetry(context.Background(), "prompt", "标题", Params{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text reply", out)
}

func TestBase_CallLLMWithRetry_ExtractsParsesValidatesAndReplacesContent(t *testing.T) {
	base, _, bus := newTestBase("node-1", `blah <response>
<name>方案</name>
<top_level_thoughts>思考</top_level_thoughts>
<implementation_plan>实施</implementation_plan>
<plan_justification>论证</plan_justification>
</response> trailer`)

	out, err := base.CallLLMWithRetry(context.Background(), "prompt", "标题", Params{}, CreateSolutionSchema{})
	require.NoError(t, err)
	resp, ok := out.(*CreateSolutionResponse)
	require.True(t, ok)
	assert.Equal(t, "方案", resp.Name)

	msgs := bus.GetMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "方案")
	assert.Equal(t, messagebus.StatusCompleted, msgs[0].Status)
}

func TestBase_CallLLMWithRetry_MissingResponseFragmentRetriesThenExhausts(t *testing.T) {
	base, _, _ := newTestBase("node-1", "no fragment here at all")
	_, err := base.CallLLMWithRetry(context.Background(), "prompt", "标题", Params{}, CreateSolutionSchema{})
	require.Error(t, err)
	var verr *xmlfrag.ValidationError
	assert.ErrorAs(t, err, &verr, "a validation failure is retried and still unwraps to the original error once exhausted")
}

func TestBase_ProcessUserMessage_RejectsConcurrentRun(t *testing.T) {
	base, _, _ := newTestBase("node-1")
	base.Process = func(ctx context.Context, content string, params Params) error {
		<-ctx.Done()
		return ctx.Err()
	}

	require.NoError(t, base.ProcessUserMessage("go", "title", Params{}))
	err := base.ProcessUserMessage("go again", "title", Params{})
	assert.Error(t, err)

	require.True(t, base.StopProcessing())
	require.Eventually(t, func() bool { return !base.IsProcessing() }, time.Second, time.Millisecond)
}

func TestBase_ProcessUserMessage_CancellationIsRecordedAsSuccess(t *testing.T) {
	base, _, _ := newTestBase("node-1")
	started := make(chan struct{})
	base.Process = func(ctx context.Context, content string, params Params) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	require.NoError(t, base.ProcessUserMessage("go", "title", Params{}))
	<-started
	base.StopProcessing()

	require.Eventually(t, func() bool { return !base.IsProcessing() }, time.Second, time.Millisecond)
	assert.Equal(t, "success", base.GetLastTaskResult().Status)
}

func TestBase_ExecuteAction_PublishesFailureOnError(t *testing.T) {
	base, _, bus := newTestBase("node-1")
	errBoom := &xmlfrag.ValidationError{Msg: "boom"}

	_, err := base.ExecuteAction("create_solution", Params{}, func() (tree.CommandResult, error) {
		return tree.CommandResult{}, errBoom
	})
	require.ErrorIs(t, err, errBoom)

	msgs := bus.GetMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "执行失败")
	assert.Equal(t, messagebus.StatusCompleted, msgs[0].Status)
}

func TestBase_ExecuteAction_PublishesCompletionOnSuccess(t *testing.T) {
	base, _, bus := newTestBase("node-1")

	result, err := base.ExecuteAction("create_solution", Params{}, func() (tree.CommandResult, error) {
		return tree.CommandResult{Success: true, Message: "创建成功", SnapshotID: "snap-1"}, nil
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	msgs := bus.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "create_solution", msgs[0].ActionTitle)
}
