package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konglinxi/resvizcopilot/internal/messagebus"
	"github.com/konglinxi/resvizcopilot/internal/tree"
)

func TestPublisherLabel(t *testing.T) {
	s := tree.NewStore(nil)
	res, err := s.AddRootProblem(tree.ProblemRequest{Title: "根问题"})
	require.NoError(t, err)
	root := res.Data.(*tree.Problem)

	assert.Equal(t, "用户", publisherLabel(s, "", root.ID))
	assert.Contains(t, publisherLabel(s, root.ID, "someone-else"), "根问题")
	assert.Contains(t, publisherLabel(s, root.ID, root.ID), "（你）")
	assert.Equal(t, "gone", publisherLabel(s, "gone", root.ID))
}

func TestRenderMessageList_EmptyAndPopulated(t *testing.T) {
	s := tree.NewStore(nil)
	assert.Equal(t, "暂无历史消息", renderMessageList(s, nil, "viewer"))

	msgs := []*messagebus.Message{
		{Publisher: "", Title: "标题", Content: "内容"},
	}
	out := renderMessageList(s, msgs, "viewer")
	assert.Contains(t, out, "用户")
	assert.Contains(t, out, "标题")
	assert.Contains(t, out, "内容")
}

func TestRenderSubProblemList(t *testing.T) {
	assert.Equal(t, "当前方案无子研究问题", renderSubProblemList(nil, nil))

	orgProblems := map[string]tree.ProblemRequest{
		"子问题一": {Title: "子问题一", Significance: "意义一", Criteria: "标准一", ProblemType: tree.ProblemImplementation},
	}
	out := renderSubProblemList(orgProblems, []string{"子问题一"})
	assert.Contains(t, out, "子问题一")
	assert.Contains(t, out, "意义一")
	assert.Contains(t, out, "标准一")
}
