package agent

import (
	"strings"

	"github.com/konglinxi/resvizcopilot/internal/tree"
)

// EnvironmentInfo is the bundle of research-tree context every prompt
// template embeds, built fresh for each call.
type EnvironmentInfo struct {
	CurrentResearchTreeFullText            string
	CurrentResearchProblem                 string
	RootProblem                            string
	ExpertSolutionsOfAllAncestorProblems   string
	OtherSolutionsOfCurrentProblem         string
	ExpertSolutionsOfAllDescendantProblems string
	UserPrompt                             string
}

func buildEnvironmentInfo(store *tree.Store, problemID, userRequirement string) (EnvironmentInfo, error) {
	info := EnvironmentInfo{
		CurrentResearchTreeFullText: store.GetCompactTextTree(),
		UserPrompt:                  "无要求",
	}
	if info.CurrentResearchTreeFullText == "" {
		info.CurrentResearchTreeFullText = "研究树为空"
	}
	if userRequirement != "" {
		info.UserPrompt = userRequirement
	}

	if problemID == "" {
		info.CurrentResearchProblem = "当前研究问题为空"
		info.RootProblem = "当前研究问题为空"
		info.ExpertSolutionsOfAllAncestorProblems = "无上级专家解决方案"
		info.OtherSolutionsOfCurrentProblem = "无其他解决方案"
		info.ExpertSolutionsOfAllDescendantProblems = "无后代解决方案"
		return info, nil
	}

	detail, err := store.GetProblemDetail(problemID)
	if err != nil {
		return EnvironmentInfo{}, err
	}
	info.CurrentResearchProblem = detail

	rootID, err := store.GetRootProblemID(problemID)
	if err != nil {
		return EnvironmentInfo{}, err
	}
	rootDetail, err := store.GetProblemDetail(rootID)
	if err != nil {
		return EnvironmentInfo{}, err
	}
	info.RootProblem = rootDetail

	related, err := store.GetRelatedSolutions(problemID)
	if err != nil {
		return EnvironmentInfo{}, err
	}
	info.ExpertSolutionsOfAllAncestorProblems = joinSolutionDetails(store, related.Ancestors, "无上级专家解决方案")
	info.OtherSolutionsOfCurrentProblem = joinSolutionDetails(store, related.Siblings, "无其他解决方案")
	info.ExpertSolutionsOfAllDescendantProblems = joinSolutionDetails(store, related.Descendants, "无后代解决方案")

	return info, nil
}

func joinSolutionDetails(store *tree.Store, solutionIDs []string, empty string) string {
	if len(solutionIDs) == 0 {
		return empty
	}
	parts := make([]string, 0, len(solutionIDs))
	for _, id := range solutionIDs {
		detail, err := store.GetSolutionDetail(id)
		if err != nil {
			continue
		}
		parts = append(parts, detail)
	}
	if len(parts) == 0 {
		return empty
	}
	return strings.Join(parts, "\n\n")
}
