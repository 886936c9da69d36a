package tree

// AddRootProblem appends a new implementation problem root.
func (s *Store) AddRootProblem(req ProblemRequest) (CommandResult, error) {
	return s.mutate("add_root_problem", func(roots []*Problem) ([]*Problem, any, error) {
		p := &Problem{
			ID:           s.idFunc(),
			Title:        req.Title,
			ProblemType:  ProblemImplementation,
			Significance: req.Significance,
			Criteria:     req.Criteria,
			CreatedAt:    s.nowFunc(),
		}
		return append(roots, p), p, nil
	})
}

// UpdateRootProblem replaces a root problem's fields in place. A root
// may never become conditional, roots must stay implementation
// problems.
func (s *Store) UpdateRootProblem(id string, req ProblemRequest) (CommandResult, error) {
	return s.mutate("update_root_problem", func(roots []*Problem) ([]*Problem, any, error) {
		if req.ProblemType == ProblemConditional {
			return nil, nil, invariant("root problems cannot be conditional")
		}
		for _, r := range roots {
			if r.ID == id {
				r.Title = req.Title
				r.Significance = req.Significance
				r.Criteria = req.Criteria
				return roots, r, nil
			}
		}
		return nil, nil, notFound("problem", id)
	})
}

// DeleteRootProblem removes a root problem and its entire subtree.
func (s *Store) DeleteRootProblem(id string) (CommandResult, error) {
	return s.mutate("delete_root_problem", func(roots []*Problem) ([]*Problem, any, error) {
		for i, r := range roots {
			if r.ID == id {
				return append(append([]*Problem(nil), roots[:i]...), roots[i+1:]...), nil, nil
			}
		}
		return nil, nil, notFound("problem", id)
	})
}

// UpdateProblem replaces a (possibly non-root) problem's fields.
func (s *Store) UpdateProblem(id string, req ProblemRequest) (CommandResult, error) {
	return s.mutate("update_problem", func(roots []*Problem) ([]*Problem, any, error) {
		p := findProblem(roots, id)
		if p == nil {
			return nil, nil, notFound("problem", id)
		}
		p.Title = req.Title
		p.Significance = req.Significance
		p.Criteria = req.Criteria
		if req.ProblemType != "" {
			if req.ProblemType == ProblemConditional && len(p.Children) > 0 {
				return nil, nil, invariant("cannot mark problem %q conditional while it owns solution children", id)
			}
			p.ProblemType = req.ProblemType
		}
		return roots, p, nil
	})
}

// CreateSolution attaches a new solution under problemID, reusing
// existing sub-problems by id where request.Children names one, and
// auto-selecting the new solution as its parent's selected solution.
func (s *Store) CreateSolution(problemID string, req SolutionRequest) (CommandResult, error) {
	return s.mutate("create_solution", func(roots []*Problem) ([]*Problem, any, error) {
		parent := findProblem(roots, problemID)
		if parent == nil {
			return nil, nil, notFound("problem", problemID)
		}
		if parent.ProblemType == ProblemConditional {
			return nil, nil, invariant("conditional problem %q cannot own a solution", problemID)
		}

		sol := &Solution{
			ID:                 s.idFunc(),
			Title:              strOrEmpty(req.Title),
			TopLevelThoughts:   strOrEmpty(req.TopLevelThoughts),
			ImplementationPlan: strOrEmpty(req.ImplementationPlan),
			PlanJustification:  strOrEmpty(req.PlanJustification),
			State:              req.State,
			FinalReport:        req.FinalReport,
			CreatedAt:          s.nowFunc(),
		}
		for _, childReq := range req.Children {
			if childReq.ID != "" {
				if existing := findProblem(roots, childReq.ID); existing != nil {
					sol.Children = append(sol.Children, existing.clone())
					continue
				}
			}
			sol.Children = append(sol.Children, &Problem{
				ID:           s.idFunc(),
				Title:        childReq.Title,
				ProblemType:  childReq.ProblemType,
				Significance: childReq.Significance,
				Criteria:     childReq.Criteria,
				CreatedAt:    s.nowFunc(),
			})
		}

		parent.Children = append(parent.Children, sol)
		parent.SelectedSolutionID = sol.ID
		return roots, sol, nil
	})
}

// UpdateSolution replaces a solution's fields in place, leaving its
// children untouched. A nil text field leaves the existing value
// alone; a no-op update (every field nil or empty) produces a new
// snapshot with identical visible data to the previous one.
func (s *Store) UpdateSolution(solutionID string, req SolutionRequest) (CommandResult, error) {
	return s.mutate("update_solution", func(roots []*Problem) ([]*Problem, any, error) {
		sol := findSolution(roots, solutionID)
		if sol == nil {
			return nil, nil, notFound("solution", solutionID)
		}
		if req.Title != nil {
			sol.Title = *req.Title
		}
		if req.TopLevelThoughts != nil {
			sol.TopLevelThoughts = *req.TopLevelThoughts
		}
		if req.ImplementationPlan != nil {
			sol.ImplementationPlan = *req.ImplementationPlan
		}
		if req.PlanJustification != nil {
			sol.PlanJustification = *req.PlanJustification
		}
		if req.State != "" {
			sol.State = req.State
		}
		if req.FinalReport != "" {
			sol.FinalReport = req.FinalReport
		}
		return roots, sol, nil
	})
}

// DeleteSolution removes a solution subtree. It does not clear the
// parent's SelectedSolutionID — see DESIGN.md's Open Question decision.
func (s *Store) DeleteSolution(solutionID string) (CommandResult, error) {
	return s.mutate("delete_solution", func(roots []*Problem) ([]*Problem, any, error) {
		parent := findSolutionParent(roots, solutionID)
		if parent == nil {
			return nil, nil, notFound("solution", solutionID)
		}
		for i, c := range parent.Children {
			if c.ID == solutionID {
				parent.Children = append(append([]*Solution(nil), parent.Children[:i]...), parent.Children[i+1:]...)
				return roots, nil, nil
			}
		}
		return nil, nil, notFound("solution", solutionID)
	})
}

// SetSelectedSolution points problemID's selected-solution reference at
// solutionID ("" clears it). solutionID, if non-empty, must reference
// an existing solution child of problemID.
func (s *Store) SetSelectedSolution(problemID, solutionID string) (CommandResult, error) {
	return s.mutate("set_selected_solution", func(roots []*Problem) ([]*Problem, any, error) {
		p := findProblem(roots, problemID)
		if p == nil {
			return nil, nil, notFound("problem", problemID)
		}
		if solutionID != "" {
			found := false
			for _, c := range p.Children {
				if c.ID == solutionID {
					found = true
					break
				}
			}
			if !found {
				return nil, nil, invariant("solution %q is not a child of problem %q", solutionID, problemID)
			}
		}
		p.SelectedSolutionID = solutionID
		return roots, p, nil
	})
}
