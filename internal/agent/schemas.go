// Package agent implements the LLM-backed agents that expand, critique
// and revise the research tree: the shared call-LLM-parse-validate
// lifecycle (Base), the breadth-first auto-research agent, and the
// decide-then-modify chat agent.
package agent

import (
	"fmt"
	"strings"

	"github.com/konglinxi/resvizcopilot/internal/tree"
	"github.com/konglinxi/resvizcopilot/internal/xmlfrag"
)

// subProblemSpec is one <sub_problem type="...">...</sub_problem> entry,
// shared by CreateSolutionResponse and ModifySolutionResponse. Type may
// be "inherit" only in the modify flow.
type subProblemSpec struct {
	Type         tree.ProblemType
	Name         string
	Significance string
	Criteria     string
}

const problemTypeInherit tree.ProblemType = "inherit"

func parseSubProblems(m map[string]any, allowInherit bool) ([]subProblemSpec, error) {
	raw, ok := m["research_plan"]
	if !ok || raw == nil {
		return nil, nil
	}
	planMap, ok := raw.(map[string]any)
	if !ok {
		// A bare string ("无子研究问题") or similar means no sub-problems.
		return nil, nil
	}
	items := xmlfrag.AsList(planMap, "sub_problem")
	specs := make([]subProblemSpec, 0, len(items))
	for _, item := range items {
		entry, err := xmlfrag.AsMap(item, "sub_problem")
		if err != nil {
			return nil, err
		}
		attrs, _ := entry["_attributes"].(map[string]string)
		ptype := tree.ProblemType(attrs["type"])
		if ptype == "" {
			ptype = tree.ProblemImplementation
		}
		if ptype == problemTypeInherit && !allowInherit {
			return nil, &xmlfrag.ValidationError{Msg: "sub_problem type \"inherit\" is not allowed here"}
		}
		name, err := xmlfrag.RequireString(entry, "name")
		if err != nil {
			return nil, err
		}
		spec := subProblemSpec{Type: ptype, Name: name}
		if ptype != problemTypeInherit {
			spec.Significance = xmlfrag.OptionalString(entry, "significance")
			spec.Criteria = xmlfrag.OptionalString(entry, "criteria")
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func renderSubProblems(specs []subProblemSpec) string {
	var b strings.Builder
	for _, sp := range specs {
		fmt.Fprintf(&b, "[问题类型]: %s\n", sp.Type)
		if sp.Type == problemTypeInherit {
			fmt.Fprintf(&b, "[继承自问题]: %s\n", sp.Name)
			continue
		}
		fmt.Fprintf(&b, "[问题名称]: %s\n", sp.Name)
		fmt.Fprintf(&b, "[问题意义]: \n%s\n", sp.Significance)
		fmt.Fprintf(&b, "[评判标准]: \n%s\n\n", sp.Criteria)
	}
	return b.String()
}

// CreateSolutionResponse is the validated shape of the auto-research
// agent's create_solution prompt response.
type CreateSolutionResponse struct {
	Name               string
	TopLevelThoughts   string
	ResearchPlan       []subProblemSpec
	ImplementationPlan string
	PlanJustification  string
}

// CreateSolutionSchema implements xmlfrag.Schema for CreateSolutionResponse.
type CreateSolutionSchema struct{}

func (CreateSolutionSchema) Validate(m map[string]any) (any, error) {
	name, err := xmlfrag.RequireString(m, "name")
	if err != nil {
		return nil, err
	}
	thoughts, err := xmlfrag.RequireString(m, "top_level_thoughts")
	if err != nil {
		return nil, err
	}
	plan, err := xmlfrag.RequireString(m, "implementation_plan")
	if err != nil {
		return nil, err
	}
	justification, err := xmlfrag.RequireString(m, "plan_justification")
	if err != nil {
		return nil, err
	}
	subs, err := parseSubProblems(m, false)
	if err != nil {
		return nil, err
	}
	return &CreateSolutionResponse{
		Name:               name,
		TopLevelThoughts:   thoughts,
		ResearchPlan:       subs,
		ImplementationPlan: plan,
		PlanJustification:  justification,
	}, nil
}

// ToContent renders the response's replacement content_delta, shown once
// the streamed draft has been parsed and validated.
func (r *CreateSolutionResponse) ToContent() string {
	return fmt.Sprintf(
		"【解决方案名称】: %s\n\n【顶层思考】: \n%s\n\n【研究方案】: \n%s\n\n【实施方案】: \n%s\n\n【方案论证】: \n%s",
		r.Name, r.TopLevelThoughts, renderSubProblems(r.ResearchPlan), r.ImplementationPlan, r.PlanJustification,
	)
}

// ToRequest translates the validated response into the store's
// create_solution command payload.
func (r *CreateSolutionResponse) ToRequest() tree.SolutionRequest {
	children := make([]tree.ProblemRequest, 0, len(r.ResearchPlan))
	for _, sp := range r.ResearchPlan {
		children = append(children, tree.ProblemRequest{
			Title:        sp.Name,
			Significance: sp.Significance,
			Criteria:     sp.Criteria,
			ProblemType:  sp.Type,
		})
	}
	return tree.SolutionRequest{
		Title:              tree.StrPtr(r.Name),
		TopLevelThoughts:   tree.StrPtr(r.TopLevelThoughts),
		ImplementationPlan: tree.StrPtr(r.ImplementationPlan),
		PlanJustification:  tree.StrPtr(r.PlanJustification),
		Children:           children,
	}
}

// ModifySolutionResponse is the validated shape of the chat agent's
// modify_solution prompt response. It differs from
// CreateSolutionResponse only in allowing "inherit" sub-problems.
type ModifySolutionResponse struct {
	Name               string
	TopLevelThoughts   string
	ResearchPlan       []subProblemSpec
	ImplementationPlan string
	PlanJustification  string
}

// ModifySolutionSchema implements xmlfrag.Schema for ModifySolutionResponse.
type ModifySolutionSchema struct{}

func (ModifySolutionSchema) Validate(m map[string]any) (any, error) {
	name, err := xmlfrag.RequireString(m, "name")
	if err != nil {
		return nil, err
	}
	thoughts, err := xmlfrag.RequireString(m, "top_level_thoughts")
	if err != nil {
		return nil, err
	}
	plan, err := xmlfrag.RequireString(m, "implementation_plan")
	if err != nil {
		return nil, err
	}
	justification, err := xmlfrag.RequireString(m, "plan_justification")
	if err != nil {
		return nil, err
	}
	subs, err := parseSubProblems(m, true)
	if err != nil {
		return nil, err
	}
	return &ModifySolutionResponse{
		Name:               name,
		TopLevelThoughts:   thoughts,
		ResearchPlan:       subs,
		ImplementationPlan: plan,
		PlanJustification:  justification,
	}, nil
}

func (r *ModifySolutionResponse) ToContent() string {
	return fmt.Sprintf(
		"【解决方案名称】: %s\n\n【顶层思考】: \n%s\n\n【研究方案】: \n%s\n\n【实施方案】: \n%s\n\n【方案论证】: \n%s",
		r.Name, r.TopLevelThoughts, renderSubProblems(r.ResearchPlan), r.ImplementationPlan, r.PlanJustification,
	)
}

// ToRequest translates the response into a store command, choosing
// update_solution over create_solution when the new research plan
// inherits every prior sub-problem, in order and unchanged. orgProblems
// maps the prior solution's
// sub-problem titles to their ProblemRequest, and orgTitleOrder is those
// same titles in their original child order (tree.Store's
// GetSolutionChildrenRequestMap plus the caller's recorded order).
func (r *ModifySolutionResponse) ToRequest(orgProblems map[string]tree.ProblemRequest, orgTitleOrder []string) (action string, req tree.SolutionRequest) {
	if len(r.ResearchPlan) == len(orgTitleOrder) {
		unchanged := true
		for i, sp := range r.ResearchPlan {
			if sp.Type != problemTypeInherit || sp.Name != orgTitleOrder[i] {
				unchanged = false
				break
			}
		}
		if unchanged {
			return "update_solution", tree.SolutionRequest{
				Title:              tree.StrPtr(r.Name),
				TopLevelThoughts:   tree.StrPtr(r.TopLevelThoughts),
				ImplementationPlan: tree.StrPtr(r.ImplementationPlan),
				PlanJustification:  tree.StrPtr(r.PlanJustification),
			}
		}
	}

	children := make([]tree.ProblemRequest, 0, len(r.ResearchPlan))
	for _, sp := range r.ResearchPlan {
		if sp.Type == problemTypeInherit {
			if inherited, ok := orgProblems[sp.Name]; ok {
				children = append(children, inherited)
				continue
			}
			// An inherit reference to an unknown title falls back to a
			// fresh (empty) problem rather than aborting the whole response.
		}
		children = append(children, tree.ProblemRequest{
			Title:        sp.Name,
			Significance: sp.Significance,
			Criteria:     sp.Criteria,
			ProblemType:  sp.Type,
		})
	}
	return "create_solution", tree.SolutionRequest{
		Title:              tree.StrPtr(r.Name),
		TopLevelThoughts:   tree.StrPtr(r.TopLevelThoughts),
		ImplementationPlan: tree.StrPtr(r.ImplementationPlan),
		PlanJustification:  tree.StrPtr(r.PlanJustification),
		Children:           children,
	}
}

// ModificationDecision is "accept" or "reply", the two outcomes of the
// chat agent's decide step.
type ModificationDecision string

const (
	DecisionAccept ModificationDecision = "accept"
	DecisionReply  ModificationDecision = "reply"
)

// HandleModificationRequestsResponse is the validated shape of the chat
// agent's decide-step prompt response.
type HandleModificationRequestsResponse struct {
	Decision         ModificationDecision
	Reasoning        string
	ModificationPlan string
	ResponseToUser   string
}

// HandleModificationRequestsSchema implements xmlfrag.Schema. Unlike the
// solution schemas, every field of interest lives nested under the
// top-level "decision" element rather than as siblings of it.
type HandleModificationRequestsSchema struct{}

func (HandleModificationRequestsSchema) Validate(m map[string]any) (any, error) {
	raw, ok := m["decision"]
	if !ok {
		return nil, &xmlfrag.ValidationError{Msg: "missing required field \"decision\""}
	}
	decisionNode, err := xmlfrag.AsMap(raw, "decision")
	if err != nil {
		return nil, err
	}

	attrs, _ := decisionNode["_attributes"].(map[string]string)
	decision := ModificationDecision(attrs["type"])
	if decision != DecisionAccept && decision != DecisionReply {
		return nil, &xmlfrag.ValidationError{Msg: fmt.Sprintf("decision type must be \"accept\" or \"reply\", found %q", attrs["type"])}
	}

	reasoning := xmlfrag.OptionalString(decisionNode, "reasoning")
	if strings.TrimSpace(reasoning) == "" {
		return nil, &xmlfrag.ValidationError{Msg: "decision is missing its reasoning"}
	}

	resp := &HandleModificationRequestsResponse{Decision: decision, Reasoning: reasoning}
	if decision == DecisionAccept {
		plan, err := findIfBlock(decisionNode, "accept", "modification_plan")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(plan) == "" {
			return nil, &xmlfrag.ValidationError{Msg: "decision \"accept\" requires a non-empty modification_plan"}
		}
		reply, err := findIfBlock(decisionNode, "reply", "response_to_user")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(reply) != "" {
			return nil, &xmlfrag.ValidationError{Msg: "decision \"accept\" must not also carry a response_to_user"}
		}
		resp.ModificationPlan = plan
		return resp, nil
	}

	reply, err := findIfBlock(decisionNode, "reply", "response_to_user")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply) == "" {
		return nil, &xmlfrag.ValidationError{Msg: "decision \"reply\" requires a non-empty response_to_user"}
	}
	plan, err := findIfBlock(decisionNode, "accept", "modification_plan")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(plan) != "" {
		return nil, &xmlfrag.ValidationError{Msg: "decision \"reply\" must not also carry a modification_plan"}
	}
	resp.ResponseToUser = reply
	return resp, nil
}

// findIfBlock locates the <if type="wantType">...</if> child carrying
// field, matching the prompt's conditional-branch output shape. Some
// responses omit the <if> wrapper and emit the field directly under
// <decision>; that shape is accepted too.
func findIfBlock(m map[string]any, wantType, field string) (string, error) {
	for _, raw := range xmlfrag.AsList(m, "if") {
		block, err := xmlfrag.AsMap(raw, "if")
		if err != nil {
			return "", err
		}
		attrs, _ := block["_attributes"].(map[string]string)
		if attrs["type"] != wantType {
			continue
		}
		return xmlfrag.OptionalString(block, field), nil
	}
	return xmlfrag.OptionalString(m, field), nil
}

// ToContent renders the decide-step's replacement content_delta.
func (r *HandleModificationRequestsResponse) ToContent() string {
	if r.Decision == DecisionAccept {
		return fmt.Sprintf("【做出修改的理由】: %s\n【修改计划】: %s\n", r.Reasoning, r.ModificationPlan)
	}
	return fmt.Sprintf("【做出回复的理由】: %s\n【对用户的回复】: %s\n", r.Reasoning, r.ResponseToUser)
}
