package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/konglinxi/resvizcopilot/internal/tree"
)

func (s *Server) handleAddRootProblem(w http.ResponseWriter, r *http.Request) {
	var req tree.ProblemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	result, err := s.store.AddRootProblem(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateRootProblem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req tree.ProblemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	result, err := s.store.UpdateRootProblem(id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteRootProblem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.store.DeleteRootProblem(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateProblem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req tree.ProblemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	result, err := s.store.UpdateProblem(id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateSolution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req tree.SolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	result, err := s.store.CreateSolution(id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateSolution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req tree.SolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	result, err := s.store.UpdateSolution(id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteSolution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.store.DeleteSolution(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type setSelectedSolutionRequest struct {
	SolutionID string `json:"solution_id"`
}

func (s *Server) handleSetSelectedSolution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req setSelectedSolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	result, err := s.store.SetSelectedSolution(id, req.SolutionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, ok := s.store.GetNodeByID(id)
	if !ok {
		writeError(w, &tree.NotFoundError{Kind: "node", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleCurrentSnapshotID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"snapshot_id": s.store.CurrentSnapshotID()})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := s.store.View(id)
	if !ok {
		writeError(w, &tree.NotFoundError{Kind: "snapshot", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCompactTextTree(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.store.GetCompactTextTree()))
}
