package api

import (
	"net/http"

	"tasklist/cmd/internal/task"
)

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request, userID string) {
	out, err := h.svc.Tasks.List(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeFault(w, r, "api.tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMyTasks(w http.ResponseWriter, r *http.Request, userID string) {
	out, err := h.svc.Tasks.ForUser(r.Context(), userID)
	if err != nil {
		h.writeFault(w, r, "api.tasks.mine", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request, userID string) {
	var req createTaskRequest
	if !h.decodeBody(w, r, &req, false) {
		return
	}
	t, err := h.svc.Tasks.Create(r.Context(), userID, r.PathValue("id"), task.CreateInput{
		Title:           req.Title,
		Notes:           req.Notes,
		DueAt:           req.DueAt,
		EstimateMinutes: req.EstimateMin,
		Priority:        req.Priority,
		AssigneeID:      req.AssigneeID,
	})
	if err != nil {
		h.writeFault(w, r, "api.tasks.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request, userID string) {
	t, err := h.svc.Tasks.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeFault(w, r, "api.tasks.get", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, userID string) {
	var p task.Patch
	if !h.decodeBody(w, r, &p, false) {
		return
	}
	t, err := h.svc.Tasks.Update(r.Context(), userID, r.PathValue("id"), p)
	if err != nil {
		h.writeFault(w, r, "api.tasks.update", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.svc.Tasks.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		h.writeFault(w, r, "api.tasks.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
