package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/konglinxi/resvizcopilot/internal/agent"
	"github.com/konglinxi/resvizcopilot/internal/messagebus"
)

// finishedSettleDelay mirrors agents.py's 0.1s pause between the last
// patch event and the terminal finished/error event, giving slow
// subscribers a chance to drain the final content delta first.
const finishedSettleDelay = 100 * time.Millisecond

func sseHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func writeSSE(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func isFinished(p messagebus.OutboundPatch) bool {
	return p.ActionTitle != nil && *p.ActionTitle == "finished"
}

type sendMessageRequest struct {
	Content         string `json:"content"`
	Title           string `json:"title"`
	AgentName       string `json:"agent_name"`
	ProblemID       string `json:"problem_id,omitempty"`
	SolutionID      string `json:"solution_id,omitempty"`
	UserRequirement string `json:"user_requirement,omitempty"`
}

// handleSendMessage implements sse_send_message: publish the user
// message, spawn the agent's background task, and stream every patch
// until the terminal finished broadcast, followed by a finished or
// error event reflecting the task's recorded outcome.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if req.Title == "" {
		req.Title = "用户消息"
	}

	a, ok := s.agents[req.AgentName]
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown agent %q", req.AgentName)})
		return
	}
	if a.IsProcessing() {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "an agent task is already running"})
		return
	}

	sub := s.bus.Subscribe()
	params := agent.Params{ProblemID: req.ProblemID, SolutionID: req.SolutionID, UserRequirement: req.UserRequirement}
	if err := a.ProcessUserMessage(req.Content, req.Title, params); err != nil {
		sub.Close()
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
		return
	}

	sseHeaders(w)
	w.WriteHeader(http.StatusOK)
	s.streamUntilFinished(w, r, sub, a, "")
}

// handleContinueMessage implements the resume protocol: a generating
// message replays a synthetic sync patch then forwards live patches
// until finished; a completed message replays once as a single
// finished patch with its snapshot fully resolved.
func (s *Server) handleContinueMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, ok := s.bus.GetMessage(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "message not found"})
		return
	}

	sseHeaders(w)
	w.WriteHeader(http.StatusOK)

	if msg.Status != messagebus.StatusGenerating {
		writeSSE(w, "patch", s.projectCompleted(msg))
		return
	}

	sub := s.bus.Subscribe()
	sync := messagebus.OutboundPatch{
		MessageID:     msg.ID,
		Role:          &msg.Role,
		ThinkingDelta: msg.Thinking,
		ContentDelta:  msg.Content,
		ActionParams:  msg.ActionParams,
		Finished:      false,
	}
	if msg.Title != "" {
		sync.Title = &msg.Title
	}
	if msg.ActionTitle != "" {
		sync.ActionTitle = &msg.ActionTitle
	}
	if msg.SnapshotID != "" {
		sync.SnapshotID = &msg.SnapshotID
	}
	writeSSE(w, "patch", sync)

	var activeAgent *agent.Base
	for _, a := range s.agents {
		if a.IsProcessing() {
			activeAgent = a
			break
		}
	}
	s.streamUntilFinished(w, r, sub, activeAgent, id)
}

// streamUntilFinished forwards patches targeting messageID (or every
// patch, when messageID is empty) until the terminal finished
// broadcast arrives, then emits the matching finished/error event.
// activeAgent may be nil if the run already ended by the time a
// continue request arrives; in that case the loop exits once a
// finished broadcast is observed or the client disconnects.
func (s *Server) streamUntilFinished(w http.ResponseWriter, r *http.Request, sub *messagebus.Subscription, activeAgent *agent.Base, messageID string) {
	defer sub.Close()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case patch, ok := <-sub.C:
			if !ok {
				return
			}
			if isFinished(patch) {
				time.Sleep(finishedSettleDelay)
				s.emitOutcome(w, activeAgent)
				return
			}
			if messageID != "" && patch.MessageID != messageID {
				continue
			}
			if err := writeSSE(w, "patch", patch); err != nil {
				s.log.Warn("httpapi: sse write failed, dropping subscriber", "error", err)
				return
			}
		}
	}
}

func (s *Server) emitOutcome(w http.ResponseWriter, a *agent.Base) {
	if a == nil {
		writeSSE(w, "finished", map[string]string{"status": "success"})
		return
	}
	result := a.GetLastTaskResult()
	if result.Status == "error" {
		writeSSE(w, "error", result)
		return
	}
	writeSSE(w, "finished", result)
}

// projectCompleted rebuilds the front-end patch projection for an
// already-completed message, resolving its snapshot the same way the
// live bus does for in-flight patches.
func (s *Server) projectCompleted(msg *messagebus.Message) messagebus.OutboundPatch {
	out := messagebus.OutboundPatch{
		MessageID:      msg.ID,
		Role:           &msg.Role,
		ContentDelta:   msg.Content,
		ThinkingDelta:  msg.Thinking,
		VisibleNodeIDs: msg.VisibleNodeIDs,
		Finished:       true,
	}
	if msg.Publisher != "" {
		out.Publisher = &msg.Publisher
	}
	if msg.Title != "" {
		out.Title = &msg.Title
	}
	if msg.ActionTitle != "" {
		out.ActionTitle = &msg.ActionTitle
		out.ActionParams = msg.ActionParams
	}
	if msg.SnapshotID != "" {
		out.SnapshotID = &msg.SnapshotID
		if view, ok := s.store.View(msg.SnapshotID); ok {
			out.Snapshot = view
		}
	}
	return out
}

type stopResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Stopped []string `json:"stopped,omitempty"`
}

// handleStopProcessing implements stop_generation: cancel every
// currently-running agent task and report which ones were stopped.
func (s *Server) handleStopProcessing(w http.ResponseWriter, r *http.Request) {
	var stopped []string
	for name, a := range s.agents {
		if a.IsProcessing() && a.StopProcessing() {
			stopped = append(stopped, name)
		}
	}
	if len(stopped) == 0 {
		writeJSON(w, http.StatusOK, stopResponse{Status: "info", Message: "no generation task is currently running"})
		return
	}
	writeJSON(w, http.StatusOK, stopResponse{Status: "success", Message: fmt.Sprintf("stopped agents: %v", stopped), Stopped: stopped})
}

type rollbackResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	DeletedCount     int    `json:"deleted_count"`
	TargetSnapshotID string `json:"target_snapshot_id,omitempty"`
}

// handleRollbackTo implements rollback_to_message: erase every message
// after id and restore the tree to the latest snapshot committed at or
// before it.
func (s *Server) handleRollbackTo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var snapshotID string
	for _, m := range s.bus.GetMessages() {
		if m.SnapshotID != "" {
			snapshotID = m.SnapshotID
		}
		if m.ID == id {
			break
		}
	}

	deleted, err := s.bus.RollbackToMessage(id)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if snapshotID == "" {
		snapshotID = s.store.InitialSnapshotID()
	}
	if err := s.store.RestoreTo(snapshotID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rollbackResponse{
		Success:          true,
		Message:          fmt.Sprintf("rolled back to message %s, deleted %d message(s)", id, deleted),
		DeletedCount:     deleted,
		TargetSnapshotID: snapshotID,
	})
}

type agentStatus struct {
	Processing bool             `json:"processing"`
	LastResult agent.TaskResult `json:"last_result"`
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]agentStatus, len(s.agents))
	for name, a := range s.agents {
		out[name] = agentStatus{Processing: a.IsProcessing(), LastResult: a.GetLastTaskResult()}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStatus implements /status: a process-wide summary combining
// message-log size, per-agent state and retry-engine counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	agents := make(map[string]agentStatus, len(s.agents))
	for name, a := range s.agents {
		agents[name] = agentStatus{Processing: a.IsProcessing(), LastResult: a.GetLastTaskResult()}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message_count":       len(s.bus.GetMessages()),
		"current_snapshot_id": s.store.CurrentSnapshotID(),
		"agents":              agents,
		"retry_stats":         s.retry.Stats(),
	})
}

func (s *Server) handleRetryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.retry.Stats())
}
