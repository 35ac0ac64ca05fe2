package api

import (
	"net/http"

	"tasklist/cmd/internal/lists"
)

func (h *Handler) handleListLists(w http.ResponseWriter, r *http.Request, userID string) {
	out, err := h.svc.Lists.ForUser(r.Context(), userID)
	if err != nil {
		h.writeFault(w, r, "api.lists", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateList(w http.ResponseWriter, r *http.Request, userID string) {
	var req createListRequest
	if !h.decodeBody(w, r, &req, false) {
		return
	}
	l, err := h.svc.Lists.Create(r.Context(), userID, lists.CreateInput{Name: req.Name, Color: req.Color})
	if err != nil {
		h.writeFault(w, r, "api.lists.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleGetList(w http.ResponseWriter, r *http.Request, userID string) {
	l, err := h.svc.Lists.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeFault(w, r, "api.lists.get", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) handleUpdateList(w http.ResponseWriter, r *http.Request, userID string) {
	var req updateListRequest
	if !h.decodeBody(w, r, &req, false) {
		return
	}
	l, err := h.svc.Lists.Update(r.Context(), userID, r.PathValue("id"), lists.Patch{Name: req.Name, Color: req.Color})
	if err != nil {
		h.writeFault(w, r, "api.lists.update", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) handleDeleteList(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.svc.Lists.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		h.writeFault(w, r, "api.lists.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListStats(w http.ResponseWriter, r *http.Request, userID string) {
	st, err := h.svc.Lists.Stats(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeFault(w, r, "api.lists.stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
