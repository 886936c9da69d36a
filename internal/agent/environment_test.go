package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konglinxi/resvizcopilot/internal/tree"
)

func TestBuildEnvironmentInfo_EmptyProblemID(t *testing.T) {
	s := tree.NewStore(nil)
	info, err := buildEnvironmentInfo(s, "", "")
	require.NoError(t, err)
	assert.Equal(t, "研究树为空", info.CurrentResearchTreeFullText)
	assert.Equal(t, "无要求", info.UserPrompt)
	assert.Equal(t, "当前研究问题为空", info.CurrentResearchProblem)
	assert.Equal(t, "无上级专家解决方案", info.ExpertSolutionsOfAllAncestorProblems)
}

func TestBuildEnvironmentInfo_PopulatedProblem(t *testing.T) {
	s := tree.NewStore(nil)
	res, err := s.AddRootProblem(tree.ProblemRequest{Title: "根问题", Significance: "意义", Criteria: "标准"})
	require.NoError(t, err)
	root := res.Data.(*tree.Problem)

	info, err := buildEnvironmentInfo(s, root.ID, "请加快进度")
	require.NoError(t, err)
	assert.Equal(t, "请加快进度", info.UserPrompt)
	assert.Contains(t, info.CurrentResearchProblem, "根问题")
	assert.Contains(t, info.RootProblem, "根问题")
	assert.Equal(t, "无上级专家解决方案", info.ExpertSolutionsOfAllAncestorProblems)
	assert.Equal(t, "无其他解决方案", info.OtherSolutionsOfCurrentProblem)
}

func TestBuildEnvironmentInfo_UnknownProblemErrors(t *testing.T) {
	s := tree.NewStore(nil)
	_, err := buildEnvironmentInfo(s, "does-not-exist", "")
	assert.Error(t, err)
}
