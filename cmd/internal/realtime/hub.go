package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"tasklist/cmd/internal/model"
	v1 "tasklist/shared/contracts/feed/v1"
)

// Hub owns the in-process list feeds. It implements activity.Publisher for
// single-instance deployments; RedisBroker fans out across instances and
// delivers into a Hub.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	feeds map[string]*Feed
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		feeds: make(map[string]*Feed),
	}
}

// Subscribe joins client to its list's feed.
func (h *Hub) Subscribe(client *Client) *Feed {
	h.mu.Lock()
	f, ok := h.feeds[client.ListID]
	if !ok {
		f = NewFeed(h.log, client.ListID)
		h.feeds[client.ListID] = f
	}
	// join under the hub lock so Unsubscribe cannot drop a feed being joined
	f.Join(client)
	h.mu.Unlock()
	return f
}

// Unsubscribe removes client and drops its feed once empty.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.feeds[client.ListID]
	if !ok {
		return
	}
	if f.Leave(client.SessionID) == 0 {
		delete(h.feeds, client.ListID)
	}
}

// Subscribers returns the number of sessions watching listID.
func (h *Hub) Subscribers(listID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.feeds[listID].Len()
}

// Publish delivers e to local subscribers.
func (h *Hub) Publish(_ context.Context, e model.Event) error {
	h.Deliver(e)
	return nil
}

// Deliver broadcasts e to the subscribers of e.ListID.
func (h *Hub) Deliver(e model.Event) int {
	h.mu.RLock()
	f := h.feeds[e.ListID]
	h.mu.RUnlock()
	if f == nil {
		return 0
	}

	env, err := eventEnvelope(e)
	if err != nil {
		h.log.Error("feed.encode.fail", "list_id", e.ListID, "event_id", e.ID, "err", err)
		return 0
	}
	return f.Broadcast(env)
}

func eventEnvelope(e model.Event) (v1.Envelope, error) {
	payload, err := json.Marshal(v1.EventPayload{
		EventID: e.ID,
		ListID:  e.ListID,
		Type:    string(e.Type),
		At:      e.At,
		ActorID: e.ActorID,
		Data:    e.Data,
	})
	if err != nil {
		return v1.Envelope{}, err
	}
	return newEnvelope(v1.TypeEvent, e.ListID, payload, model.FromMillis(e.At))
}
