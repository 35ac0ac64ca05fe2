package api

import (
	"net/http"
	"net/url"

	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/security/token"
)

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request, userID string) {
	out, err := h.svc.Members.Members(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeFault(w, r, "api.members", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request, userID string) {
	var req changeRoleRequest
	if !h.decodeBody(w, r, &req, false) {
		return
	}
	m, err := h.svc.Members.ChangeRole(r.Context(), userID, r.PathValue("id"), r.PathValue("userId"), req.Role)
	if err != nil {
		h.writeFault(w, r, "api.members.role", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ---- invites ----

func (h *Handler) handleCreateInvite(w http.ResponseWriter, r *http.Request, userID string) {
	var req createInviteRequest
	if !h.decodeBody(w, r, &req, true) {
		return
	}
	inv, err := h.svc.Invites.CreateInvite(r.Context(), userID, r.PathValue("id"), req.Email)
	if err != nil {
		h.writeFault(w, r, "api.invites.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInviteResponse(inv))
}

func (h *Handler) handleRevokeInvite(w http.ResponseWriter, r *http.Request, userID string) {
	inv, err := h.svc.Invites.RevokeInvite(r.Context(), userID, r.PathValue("id"), r.PathValue("inviteId"))
	if err != nil {
		h.writeFault(w, r, "api.invites.revoke", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request, userID string) {
	key := userID
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		key = ip.String()
	}
	if ok, retry := h.join.allow(key, h.now()); !ok {
		h.metrics.RateLimited("join")
		h.log.Warn("api.join.rate_limited", "key", key)
		writeRateLimited(w, retry)
		return
	}

	raw := r.PathValue("token")
	m, err := h.svc.Invites.AcceptInvite(r.Context(), userID, raw)
	if err != nil {
		if fault.IsDomain(err) {
			h.log.Info("api.join.rejected", "token_fp", token.Fingerprint(raw), "code", fault.Code(err))
		}
		h.writeFault(w, r, "api.join", err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{OK: true, ListID: m.ListID, Role: string(m.Role)})
}

func toInviteResponse(inv model.Invite) inviteResponse {
	return inviteResponse{Invite: inv, JoinURL: "/join/" + url.PathEscape(inv.Token)}
}
