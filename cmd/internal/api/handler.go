// Package api is the HTTP adapter of the tracker: JSON routes over the core
// services, session authentication, and the fault-to-status mapping.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tasklist/cmd/identity"
	"tasklist/cmd/internal/activity"
	"tasklist/cmd/internal/auth/session"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/invite"
	"tasklist/cmd/internal/lists"
	"tasklist/cmd/internal/membership"
	"tasklist/cmd/internal/metrics"
	"tasklist/cmd/internal/task"
)

// Services are the core operations served over HTTP. All are required.
type Services struct {
	Identity *identity.Service
	Lists    *lists.Service
	Members  *membership.Service
	Invites  *invite.Service
	Tasks    *task.Service
	Activity *activity.Log
	Sessions *session.Manager
}

func (s Services) validate() error {
	if s.Identity == nil || s.Lists == nil || s.Members == nil || s.Invites == nil ||
		s.Tasks == nil || s.Activity == nil || s.Sessions == nil {
		return errors.New("api: all services are required")
	}
	return nil
}

// Handler wires HTTP routes to the core services.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     Services
	metrics *metrics.Metrics
	feed    http.Handler
	join    *windowLimiter
	now     func() time.Time
}

// Option configures optional handler dependencies.
type Option func(*Handler)

// WithMetrics records rate-limit rejections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithFeed mounts the live activity websocket at GET /lists/{id}/events/ws.
func WithFeed(feed http.Handler) Option {
	return func(h *Handler) { h.feed = feed }
}

// WithClock overrides the time source for session refresh and rate limiting.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, svc Services, cfg Config, opts ...Option) (*Handler, error) {
	if err := svc.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	h := &Handler{
		log:  log,
		cfg:  cfg,
		svc:  svc,
		join: newWindowLimiter(cfg.JoinMax, cfg.JoinWindow),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires the API routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/refresh", h.authed(h.handleRefresh))
	mux.HandleFunc("POST /auth/logout", h.handleLogout)

	mux.HandleFunc("GET /me", h.authed(h.handleMe))
	mux.HandleFunc("PATCH /me", h.authed(h.handleUpdateMe))

	mux.HandleFunc("GET /lists", h.authed(h.handleListLists))
	mux.HandleFunc("POST /lists", h.authed(h.handleCreateList))
	mux.HandleFunc("GET /lists/{id}", h.authed(h.handleGetList))
	mux.HandleFunc("PATCH /lists/{id}", h.authed(h.handleUpdateList))
	mux.HandleFunc("DELETE /lists/{id}", h.authed(h.handleDeleteList))
	mux.HandleFunc("GET /lists/{id}/stats", h.authed(h.handleListStats))

	mux.HandleFunc("GET /lists/{id}/members", h.authed(h.handleListMembers))
	mux.HandleFunc("PATCH /lists/{id}/members/{userId}", h.authed(h.handleChangeRole))

	mux.HandleFunc("POST /lists/{id}/invites", h.authed(h.handleCreateInvite))
	mux.HandleFunc("DELETE /lists/{id}/invites/{inviteId}", h.authed(h.handleRevokeInvite))
	mux.HandleFunc("POST /join/{token}", h.authed(h.handleJoin))

	mux.HandleFunc("GET /lists/{id}/tasks", h.authed(h.handleListTasks))
	mux.HandleFunc("POST /lists/{id}/tasks", h.authed(h.handleCreateTask))
	mux.HandleFunc("GET /tasks", h.authed(h.handleMyTasks))
	mux.HandleFunc("GET /tasks/{id}", h.authed(h.handleGetTask))
	mux.HandleFunc("PATCH /tasks/{id}", h.authed(h.handleUpdateTask))
	mux.HandleFunc("DELETE /tasks/{id}", h.authed(h.handleDeleteTask))

	mux.HandleFunc("GET /lists/{id}/events", h.authed(h.handleListEvents))
	if h.feed != nil {
		mux.Handle("GET /lists/{id}/events/ws", h.feed)
	}
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

// authed resolves the caller from the session token; requests without a
// valid one get 401.
func (h *Handler) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.svc.Sessions.Authenticate(r)
		if err != nil {
			if errors.Is(err, session.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "token_expired", "session expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next(w, r, userID)
	}
}

// ---- auth ----

type refreshResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request, userID string) {
	tok, exp, err := h.svc.Sessions.Issue(userID, h.now())
	if err != nil {
		h.writeFault(w, r, "api.refresh", err)
		return
	}
	h.setSessionCookie(w, tok, exp)
	writeJSON(w, http.StatusOK, refreshResponse{Token: tok, ExpiresAt: exp})
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	h.expireSessionCookie(w)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// ---- profile ----

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	u, err := h.svc.Identity.Get(r.Context(), userID)
	if fault.IsNotFound(err) {
		// a valid token for a user that no longer exists
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err != nil {
		h.writeFault(w, r, "api.me", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request, userID string) {
	var req profileRequest
	if !h.decodeBody(w, r, &req, false) {
		return
	}
	u, err := h.svc.Identity.UpdateProfile(r.Context(), userID, identity.ProfilePatch{Name: req.Name, Avatar: req.Avatar})
	if err != nil {
		h.writeFault(w, r, "api.me.update", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ---- history ----

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	pageSize := queryInt(q.Get("pageSize"), activity.DefaultPageSize)

	p, err := h.svc.Activity.History(r.Context(), userID, r.PathValue("id"), page, pageSize)
	if err != nil {
		h.writeFault(w, r, "api.events", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// queryInt parses a paging parameter; anything unparsable falls back to def
// and range clamping is left to the caller.
func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
