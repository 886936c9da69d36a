package tree

// ProblemRequest describes a problem node to create or update. An empty
// ID means "create fresh"; a non-empty ID that resolves to an existing
// problem in the current snapshot triggers the store's clone-and-reuse
// path (used by create_solution and the chat agent's inherit rule).
type ProblemRequest struct {
	ID           string      `json:"id,omitempty"`
	Title        string      `json:"title"`
	Significance string      `json:"significance"`
	Criteria     string      `json:"criteria"`
	ProblemType  ProblemType `json:"problem_type,omitempty"`
}

// SolutionRequest describes a solution node to create or update. The
// text fields are pointers so an update can distinguish "omitted,
// leave unchanged" (nil) from "explicitly cleared" (pointer to ""); a
// create always supplies all of them.
type SolutionRequest struct {
	Title              *string          `json:"title,omitempty"`
	TopLevelThoughts   *string          `json:"top_level_thoughts,omitempty"`
	ImplementationPlan *string          `json:"implementation_plan,omitempty"`
	PlanJustification  *string          `json:"plan_justification,omitempty"`
	State              SolutionState    `json:"state,omitempty"`
	FinalReport        string           `json:"final_report,omitempty"`
	Children           []ProblemRequest `json:"children,omitempty"`
}

// StrPtr is a convenience constructor for SolutionRequest's optional
// text fields.
func StrPtr(s string) *string { return &s }

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
