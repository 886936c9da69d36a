package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/konglinxi/resvizcopilot/internal/project"
)

// currentSnapshot builds the project.Snapshot payload save/save-as
// write: the full message log plus every committed tree snapshot up to
// and including the current one, matching project_manager.py's
// {messages, snapshot_map, current_snapshot_id} save shape.
func (s *Server) currentSnapshot() project.Snapshot {
	messages := s.bus.GetMessages()
	asAny := make([]any, len(messages))
	for i, m := range messages {
		asAny[i] = m
	}

	currentID := s.store.CurrentSnapshotID()
	snapshots := make(map[string]any)
	for _, id := range s.store.SnapshotIDsUpTo(currentID) {
		if view, ok := s.store.View(id); ok {
			snapshots[id] = view
		}
	}

	return project.Snapshot{
		Messages:        asAny,
		TreeSnapshots:   snapshots,
		CurrentSnapshot: currentID,
	}
}

type saveProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	var req saveProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	info, err := s.projects.Save(req.Name, s.currentSnapshot())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSaveProjectAs(w http.ResponseWriter, r *http.Request) {
	var req saveProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	info, err := s.projects.SaveAs(req.Name, s.currentSnapshot())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snapshot, info, err := s.projects.Load(name)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"info": info, "data": snapshot})
}

// handleCurrentFullData returns the in-memory project snapshot without
// persisting it, used by clients that want to render the full tree and
// message history on first load.
func (s *Server) handleCurrentFullData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentSnapshot())
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.projects.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.projects.Delete(name); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
