package agent

import (
	"context"
	"fmt"

	"github.com/konglinxi/resvizcopilot/internal/tree"
)

// researchTask is one (problem_id, supervisor_solution_id?, user_requirement?)
// entry in the auto-research agent's FIFO queue. Supervisor
// is recorded but never consulted — review hooks are out of scope.
type researchTask struct {
	ProblemID       string
	Supervisor      string
	UserRequirement string
}

// AutoResearchAgent drives the breadth-first expansion of a problem
// subtree: for each queued problem, either descend into its already
// selected solution's children, or draft a brand new solution for it.
type AutoResearchAgent struct {
	*Base
}

// NewAutoResearchAgent builds an agent wired to base, with Process set
// to its own run method.
func NewAutoResearchAgent(base *Base) *AutoResearchAgent {
	a := &AutoResearchAgent{Base: base}
	a.Base.Process = a.run
	return a
}

func (a *AutoResearchAgent) run(ctx context.Context, content string, params Params) error {
	queue := []researchTask{{ProblemID: params.ProblemID, UserRequirement: content}}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		task := queue[0]
		queue = queue[1:]

		selectedSolutionID, err := a.selectedSolutionID(task.ProblemID)
		if err != nil {
			return err
		}

		if selectedSolutionID != "" {
			children, err := a.Store.GetNodeChildrenIDs(selectedSolutionID, true)
			if err != nil {
				return err
			}
			for _, childID := range children {
				queue = append(queue, researchTask{ProblemID: childID, Supervisor: selectedSolutionID})
			}
			continue
		}

		newSolutionID, err := a.createSolutionFor(ctx, task)
		if err != nil {
			return err
		}
		children, err := a.Store.GetNodeChildrenIDs(newSolutionID, true)
		if err != nil {
			return err
		}
		for _, childID := range children {
			queue = append(queue, researchTask{ProblemID: childID, Supervisor: newSolutionID})
		}
	}
	return nil
}

func (a *AutoResearchAgent) selectedSolutionID(problemID string) (string, error) {
	node, ok := a.Store.GetNodeByID(problemID)
	if !ok {
		return "", fmt.Errorf("auto_research: problem %q no longer exists", problemID)
	}
	p, ok := node.(*tree.Problem)
	if !ok {
		return "", fmt.Errorf("auto_research: node %q is not a problem", problemID)
	}
	return p.SelectedSolutionID, nil
}

// createSolutionFor drafts a brand new solution for task.ProblemID via
// the CreateSolution prompt and attaches it through execute_action,
// returning the new solution's id.
func (a *AutoResearchAgent) createSolutionFor(ctx context.Context, task researchTask) (string, error) {
	params := Params{ProblemID: task.ProblemID, UserRequirement: task.UserRequirement}

	env, err := a.EnvironmentInfo(task.ProblemID, task.UserRequirement)
	if err != nil {
		return "", err
	}

	prompt := renderCreateSolutionPrompt(env)
	result, err := a.CallLLMWithRetry(ctx, prompt, "正在设计解决方案", params, CreateSolutionSchema{})
	if err != nil {
		return "", err
	}
	resp, ok := result.(*CreateSolutionResponse)
	if !ok {
		return "", fmt.Errorf("auto_research: unexpected validated type %T", result)
	}

	req := resp.ToRequest()
	cmdResult, err := a.ExecuteAction("create_solution", params, func() (tree.CommandResult, error) {
		return a.Store.CreateSolution(task.ProblemID, req)
	})
	if err != nil {
		return "", err
	}
	sol, ok := cmdResult.Data.(*tree.Solution)
	if !ok {
		return "", fmt.Errorf("auto_research: create_solution did not return a solution (%T)", cmdResult.Data)
	}
	return sol.ID, nil
}
