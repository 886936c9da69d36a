// Package tree implements the immutable, copy-on-write research tree:
// problem and solution nodes, snapshot-versioned commits, and the
// query surface agent prompts are built from.
package tree

import "time"

// ProblemType discriminates a problem node's kind.
type ProblemType string

const (
	ProblemImplementation ProblemType = "implementation"
	ProblemConditional    ProblemType = "conditional"
)

// SolutionState tracks a solution's progress.
type SolutionState string

const (
	SolutionSuccess    SolutionState = "success"
	SolutionFailure    SolutionState = "failure"
	SolutionInProgress SolutionState = "in_progress"
)

// Problem is a problem node. Children are Solution nodes.
type Problem struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	ProblemType        ProblemType `json:"problem_type"`
	Significance       string      `json:"significance"`
	Criteria           string      `json:"criteria"`
	SelectedSolutionID string      `json:"selected_solution_id,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	Children           []*Solution `json:"children,omitempty"`
}

// Solution is a solution node. Children are Problem nodes.
type Solution struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	TopLevelThoughts   string        `json:"top_level_thoughts"`
	ImplementationPlan string        `json:"implementation_plan"`
	PlanJustification  string        `json:"plan_justification"`
	State              SolutionState `json:"state"`
	FinalReport        string        `json:"final_report,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	Children           []*Problem    `json:"children,omitempty"`
}

func (p *Problem) clone() *Problem {
	cp := *p
	if p.Children != nil {
		cp.Children = make([]*Solution, len(p.Children))
		for i, c := range p.Children {
			cp.Children[i] = c.clone()
		}
	}
	return &cp
}

func (s *Solution) clone() *Solution {
	cp := *s
	if s.Children != nil {
		cp.Children = make([]*Problem, len(s.Children))
		for i, c := range s.Children {
			cp.Children[i] = c.clone()
		}
	}
	return &cp
}

func cloneRoots(roots []*Problem) []*Problem {
	out := make([]*Problem, len(roots))
	for i, r := range roots {
		out[i] = r.clone()
	}
	return out
}
