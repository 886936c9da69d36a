package agent

import (
	"context"
	"fmt"

	"github.com/konglinxi/resvizcopilot/internal/tree"
)

// ChatAgent implements the decide-then-modify flow: a user raises a
// question or modification request about a solution, the
// agent decides whether to reply or accept, and on acceptance drafts a
// revised solution, reusing unchanged sub-problems in place.
type ChatAgent struct {
	*Base
}

// NewChatAgent builds an agent wired to base, with Process set to its
// own run method.
func NewChatAgent(base *Base) *ChatAgent {
	a := &ChatAgent{Base: base}
	a.Base.Process = a.run
	return a
}

func (a *ChatAgent) run(ctx context.Context, content string, params Params) error {
	solutionID := params.SolutionID
	if solutionID == "" {
		return fmt.Errorf("chat_agent: solution_id is required")
	}
	parentProblemID, ok := a.Store.GetParentNodeID(solutionID)
	if !ok {
		return fmt.Errorf("chat_agent: solution %q has no owning problem", solutionID)
	}

	env, err := a.EnvironmentInfo(parentProblemID, "")
	if err != nil {
		return err
	}
	currentSolution, err := a.Store.GetSolutionDetail(solutionID)
	if err != nil {
		return err
	}

	visibleIDs := []string{parentProblemID, solutionID}
	messageList := renderMessageList(a.Store, a.Bus.GetVisibleMessages(visibleIDs...), solutionID)

	decidePrompt := renderHandleModificationRequestsPrompt(env, "用户", currentSolution, messageList, content)
	decideResult, err := a.CallLLMWithRetry(ctx, decidePrompt, "正在分析修改请求", params, HandleModificationRequestsSchema{})
	if err != nil {
		return err
	}
	decision, ok := decideResult.(*HandleModificationRequestsResponse)
	if !ok {
		return fmt.Errorf("chat_agent: unexpected validated type %T", decideResult)
	}

	if decision.Decision != DecisionAccept {
		return nil
	}

	childIDs, err := a.Store.GetNodeChildrenIDs(solutionID, false)
	if err != nil {
		return err
	}
	orgProblems, err := a.Store.GetSolutionChildrenRequestMap(solutionID)
	if err != nil {
		return err
	}
	orgTitleOrder := make([]string, 0, len(childIDs))
	for _, id := range childIDs {
		node, ok := a.Store.GetNodeByID(id)
		if !ok {
			continue
		}
		if p, ok := node.(*tree.Problem); ok {
			orgTitleOrder = append(orgTitleOrder, p.Title)
		}
	}
	subProblemList := renderSubProblemList(orgProblems, orgTitleOrder)

	modifyPrompt := renderModifySolutionPrompt(env, "用户", currentSolution, subProblemList, messageList, decision.ModificationPlan)
	modifyResult, err := a.CallLLMWithRetry(ctx, modifyPrompt, "正在修改解决方案", params, ModifySolutionSchema{})
	if err != nil {
		return err
	}
	modified, ok := modifyResult.(*ModifySolutionResponse)
	if !ok {
		return fmt.Errorf("chat_agent: unexpected validated type %T", modifyResult)
	}

	action, req := modified.ToRequest(orgProblems, orgTitleOrder)
	_, err = a.ExecuteAction(action, params, func() (tree.CommandResult, error) {
		if action == "update_solution" {
			return a.Store.UpdateSolution(solutionID, req)
		}
		return a.Store.CreateSolution(parentProblemID, req)
	})
	return err
}
