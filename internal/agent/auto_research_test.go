package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konglinxi/resvizcopilot/internal/tree"
)

func TestAutoResearchAgent_DraftsNewSolutionForUnselectedProblem(t *testing.T) {
	base, store, _ := newTestBase("root-agent", `<response>
<name>方案甲</name>
<top_level_thoughts>思考</top_level_thoughts>
<research_plan>
<sub_problem type="implementation">
<name>子问题一</name>
<significance>意义</significance>
<criteria>标准</criteria>
</sub_problem>
</research_plan>
<implementation_plan>实施</implementation_plan>
<plan_justification>论证</plan_justification>
</response>`, `<response>
<name>子方案</name>
<top_level_thoughts>思考</top_level_thoughts>
<implementation_plan>实施</implementation_plan>
<plan_justification>论证</plan_justification>
</response>`)

	res, err := store.AddRootProblem(tree.ProblemRequest{Title: "根问题", Significance: "x", Criteria: "y"})
	require.NoError(t, err)
	root := res.Data.(*tree.Problem)

	a := NewAutoResearchAgent(base)
	err = a.run(context.Background(), "请研究", Params{ProblemID: root.ID})
	require.NoError(t, err)

	childIDs, err := store.GetNodeChildrenIDs(root.ID, false)
	require.NoError(t, err)
	require.Len(t, childIDs, 1)

	sol, ok := store.GetNodeByID(childIDs[0])
	require.True(t, ok)
	_ = sol
}

func TestAutoResearchAgent_DescendsIntoSelectedSolutionThenDraftsChild(t *testing.T) {
	base, store, _ := newTestBase("root-agent", `<response>
<name>子方案</name>
<top_level_thoughts>思考</top_level_thoughts>
<implementation_plan>实施</implementation_plan>
<plan_justification>论证</plan_justification>
</response>`)

	res, err := store.AddRootProblem(tree.ProblemRequest{Title: "根问题"})
	require.NoError(t, err)
	root := res.Data.(*tree.Problem)

	solRes, err := store.CreateSolution(root.ID, tree.SolutionRequest{
		Title: tree.StrPtr("既有方案"),
		Children: []tree.ProblemRequest{
			{Title: "实施子问题", ProblemType: tree.ProblemImplementation},
			{Title: "条件子问题", ProblemType: tree.ProblemConditional},
		},
	})
	require.NoError(t, err)
	sol := solRes.Data.(*tree.Solution)

	_, err = store.SetSelectedSolution(root.ID, sol.ID)
	require.NoError(t, err)

	a := NewAutoResearchAgent(base)
	err = a.run(context.Background(), "继续", Params{ProblemID: root.ID})
	require.NoError(t, err)

	// Only the implementation-typed child should have received a fresh
	// solution; the conditional sibling is never enqueued.
	implChildID, ok := childIDByTitle(store, sol.ID, "实施子问题")
	require.True(t, ok)
	grandchildren, err := store.GetNodeChildrenIDs(implChildID, false)
	require.NoError(t, err)
	assert.Len(t, grandchildren, 1)

	condChildID, ok := childIDByTitle(store, sol.ID, "条件子问题")
	require.True(t, ok)
	condProblem, ok := store.GetNodeByID(condChildID)
	require.True(t, ok)
	assert.Empty(t, condProblem.(*tree.Problem).SelectedSolutionID)
}

func childIDByTitle(store *tree.Store, solutionID, title string) (string, bool) {
	ids, err := store.GetNodeChildrenIDs(solutionID, false)
	if err != nil {
		return "", false
	}
	for _, id := range ids {
		node, ok := store.GetNodeByID(id)
		if !ok {
			continue
		}
		if p, ok := node.(*tree.Problem); ok && p.Title == title {
			return id, true
		}
	}
	return "", false
}
