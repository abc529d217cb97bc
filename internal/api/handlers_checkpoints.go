package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/pipeline"
)

type lookupRequest struct {
	Content string `json:"content" validate:"required"`
}

// checkpointView is a listing entry: the resume status plus its timestamps.
type checkpointView struct {
	pipeline.ResumeStatus
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) handleCheckpointLookup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes+1<<20)

	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	st, err := pipeline.Inspect(r.Context(), s.store, req.Content)
	if err != nil {
		jsonError(w, "failed to inspect checkpoint: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      st,
		"description": st.String(),
	})
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list checkpoints: "+err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]checkpointView, 0, len(records))
	for i := range records {
		st := pipeline.StatusOf(&records[i])
		views = append(views, checkpointView{
			ResumeStatus: st,
			Description:  st.String(),
			Active:       s.runner.ActiveJob(st.TaskID) != nil,
			UpdatedAt:    records[i].UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkpoints": views})
}

func (s *Server) handleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	rec, err := s.store.Load(r.Context(), taskID)
	switch {
	case errors.Is(err, checkpoint.ErrCorrupt):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		jsonError(w, "failed to load checkpoint: "+err.Error(), http.StatusInternalServerError)
		return
	case rec == nil:
		jsonError(w, "checkpoint not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteCheckpoint discards saved progress. A task with a queued or
// running job cannot be deleted.
func (s *Server) handleDeleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}
	if job := s.runner.ActiveJob(taskID); job != nil {
		jsonError(w, "task is in progress as job "+job.ID, http.StatusConflict)
		return
	}
	if err := s.store.Delete(r.Context(), taskID); err != nil {
		jsonError(w, "failed to delete checkpoint: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("checkpoint deleted", "task_id", taskID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": taskID})
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := chi.URLParam(r, "taskID")
	if !checkpoint.ValidTaskID(taskID) {
		jsonError(w, "invalid task id", http.StatusBadRequest)
		return "", false
	}
	return taskID, true
}
