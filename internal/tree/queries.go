package tree

import (
	"fmt"
	"strings"
)

// GetNodeByID returns the problem or solution with the given id, as
// whichever concrete type matches. The bool reports whether it was
// found at all.
func (s *Store) GetNodeByID(id string) (any, bool) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	if p := findProblem(roots, id); p != nil {
		return p, true
	}
	if sol := findSolution(roots, id); sol != nil {
		return sol, true
	}
	return nil, false
}

// GetParentNodeID returns the id of the node that owns id as a direct
// child, and false if id is a root problem or does not exist.
func (s *Store) GetParentNodeID(id string) (string, bool) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	if sol := findProblemParent(roots, id); sol != nil {
		return sol.ID, true
	}
	if p := findSolutionParent(roots, id); p != nil {
		return p.ID, true
	}
	return "", false
}

// GetNodeChildrenIDs returns the ids of nodeID's direct children. When
// nodeID is a problem and onlyImplementation is true, only solution
// children whose own problem children are all implementation-typed are
// irrelevant here — onlyImplementation instead filters a solution's
// child problems down to implementation-typed ones, matching the
// expansion queue's enqueue rule.
func (s *Store) GetNodeChildrenIDs(nodeID string, onlyImplementation bool) ([]string, error) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	if p := findProblem(roots, nodeID); p != nil {
		ids := make([]string, 0, len(p.Children))
		for _, c := range p.Children {
			ids = append(ids, c.ID)
		}
		return ids, nil
	}
	if sol := findSolution(roots, nodeID); sol != nil {
		ids := make([]string, 0, len(sol.Children))
		for _, c := range sol.Children {
			if onlyImplementation && c.ProblemType != ProblemImplementation {
				continue
			}
			ids = append(ids, c.ID)
		}
		return ids, nil
	}
	return nil, notFound("node", nodeID)
}

// GetRootProblemID walks up from nodeID until it finds the owning root
// problem.
func (s *Store) GetRootProblemID(nodeID string) (string, error) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	for _, r := range roots {
		if rootContains(r, nodeID) {
			return r.ID, nil
		}
	}
	return "", notFound("node", nodeID)
}

func rootContains(p *Problem, id string) bool {
	if p.ID == id {
		return true
	}
	for _, sol := range p.Children {
		if sol.ID == id {
			return true
		}
		for _, child := range sol.Children {
			if rootContains(child, id) {
				return true
			}
		}
	}
	return false
}

// GetCompactTextTree renders the whole forest as an indented listing:
// "- [P] title (type)" for problems, "- [S] title (启用|弃用) [state]"
// for solutions, selection determined by the parent problem's
// SelectedSolutionID.
func (s *Store) GetCompactTextTree() string {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	var b strings.Builder
	for _, r := range roots {
		renderProblem(&b, r, 0)
	}
	return b.String()
}

func renderProblem(b *strings.Builder, p *Problem, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s- [P] %s (%s)\n", indent, p.Title, p.ProblemType)
	for _, sol := range p.Children {
		status := "弃用"
		if sol.ID == p.SelectedSolutionID {
			status = "启用"
		}
		fmt.Fprintf(b, "%s- [S] %s (%s) [%s]\n", strings.Repeat("  ", depth+1), sol.Title, status, sol.State)
		for _, child := range sol.Children {
			renderProblem(b, child, depth+2)
		}
	}
}

// RelatedSolutions is the {ancestors, descendants, siblings} triple a
// solution's related-solutions query returns.
type RelatedSolutions struct {
	Ancestors   []string
	Descendants []string
	Siblings    []string
}

// GetRelatedSolutions returns the solutions related to problemID:
// ancestors on the path to the root, descendants reachable from the
// problem's currently selected solution, and the problem's other
// solution children.
func (s *Store) GetRelatedSolutions(problemID string) (RelatedSolutions, error) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	p := findProblem(roots, problemID)
	if p == nil {
		return RelatedSolutions{}, notFound("problem", problemID)
	}

	var ancestors []string
	for _, r := range roots {
		if found, ok := ancestorPath(r, problemID, nil); ok {
			ancestors = found
			break
		}
	}

	var descendants []string
	if p.SelectedSolutionID != "" {
		for _, sol := range p.Children {
			if sol.ID == p.SelectedSolutionID {
				descendants = collectDescendantSolutions(sol)
				break
			}
		}
	}

	var siblings []string
	for _, sol := range p.Children {
		if sol.ID != p.SelectedSolutionID {
			siblings = append(siblings, sol.ID)
		}
	}

	return RelatedSolutions{Ancestors: ancestors, Descendants: descendants, Siblings: siblings}, nil
}

func ancestorPath(p *Problem, targetID string, stack []string) ([]string, bool) {
	if p.ID == targetID {
		return append([]string(nil), stack...), true
	}
	for _, sol := range p.Children {
		next := append(append([]string(nil), stack...), sol.ID)
		for _, child := range sol.Children {
			if found, ok := ancestorPath(child, targetID, next); ok {
				return found, true
			}
		}
	}
	return nil, false
}

func collectDescendantSolutions(sol *Solution) []string {
	var ids []string
	for _, p := range sol.Children {
		for _, s := range p.Children {
			ids = append(ids, s.ID)
			ids = append(ids, collectDescendantSolutions(s)...)
		}
	}
	return ids
}

// GetSolutionDetail renders the XML-shaped string agent prompts embed
// for a given solution.
func (s *Store) GetSolutionDetail(solutionID string) (string, error) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	sol := findSolution(roots, solutionID)
	if sol == nil {
		return "", notFound("solution", solutionID)
	}
	return solutionDetailXML(sol), nil
}

func solutionDetailXML(sol *Solution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<solution id=\"%s\">\n", sol.ID)
	fmt.Fprintf(&b, "  <title>%s</title>\n", sol.Title)
	fmt.Fprintf(&b, "  <top_level_thoughts>%s</top_level_thoughts>\n", sol.TopLevelThoughts)
	fmt.Fprintf(&b, "  <implementation_plan>%s</implementation_plan>\n", sol.ImplementationPlan)
	fmt.Fprintf(&b, "  <plan_justification>%s</plan_justification>\n", sol.PlanJustification)
	fmt.Fprintf(&b, "  <state>%s</state>\n", sol.State)
	fmt.Fprintf(&b, "  <sub_problems>\n")
	for _, p := range sol.Children {
		fmt.Fprintf(&b, "    <problem id=\"%s\" type=\"%s\">%s</problem>\n", p.ID, p.ProblemType, p.Title)
	}
	fmt.Fprintf(&b, "  </sub_problems>\n")
	b.WriteString("</solution>")
	return b.String()
}

// GetProblemDetail renders the XML-shaped string agent prompts embed
// for a given problem.
func (s *Store) GetProblemDetail(problemID string) (string, error) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	p := findProblem(roots, problemID)
	if p == nil {
		return "", notFound("problem", problemID)
	}
	return problemDetailXML(p), nil
}

func problemDetailXML(p *Problem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<problem id=\"%s\" type=\"%s\">\n", p.ID, p.ProblemType)
	fmt.Fprintf(&b, "  <title>%s</title>\n", p.Title)
	fmt.Fprintf(&b, "  <significance>%s</significance>\n", p.Significance)
	fmt.Fprintf(&b, "  <criteria>%s</criteria>\n", p.Criteria)
	fmt.Fprintf(&b, "  <selected_solution_id>%s</selected_solution_id>\n", p.SelectedSolutionID)
	b.WriteString("</problem>")
	return b.String()
}

// GetSolutionChildrenRequestMap returns solutionID's sub-problems keyed
// by title, letting the chat agent detect an unchanged sub-problem list
// and prefer update-in-place over create-new.
func (s *Store) GetSolutionChildrenRequestMap(solutionID string) (map[string]ProblemRequest, error) {
	s.mu.Lock()
	roots := s.currentRootsLocked()
	s.mu.Unlock()

	sol := findSolution(roots, solutionID)
	if sol == nil {
		return nil, notFound("solution", solutionID)
	}
	out := make(map[string]ProblemRequest, len(sol.Children))
	for _, p := range sol.Children {
		out[p.Title] = ProblemRequest{
			ID:           p.ID,
			Title:        p.Title,
			Significance: p.Significance,
			Criteria:     p.Criteria,
			ProblemType:  p.ProblemType,
		}
	}
	return out, nil
}
