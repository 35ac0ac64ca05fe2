package realtime

import (
	"log/slog"
	"sync"

	v1 "tasklist/shared/contracts/feed/v1"
)

// Feed fans out one list's events to its subscribers.
//
// Join and Leave are safe under concurrent Broadcast. Broadcast never blocks:
// a subscriber whose queue is full misses the envelope.
type Feed struct {
	log    *slog.Logger
	ListID string

	mu          sync.RWMutex
	subscribers map[string]*Client
}

// NewFeed constructs a feed for listID.
func NewFeed(log *slog.Logger, listID string) *Feed {
	return &Feed{
		log:         log,
		ListID:      listID,
		subscribers: make(map[string]*Client),
	}
}

// Join subscribes client.
func (f *Feed) Join(client *Client) {
	if f == nil || client == nil || client.SessionID == "" {
		return
	}

	f.mu.Lock()
	f.subscribers[client.SessionID] = client
	f.mu.Unlock()

	f.log.Info("feed.subscriber.join", "list_id", f.ListID, "session_id", client.SessionID, "user_id", client.UserID)
}

// Leave unsubscribes sessionID and signals that client to shut down.
// It reports how many subscribers remain.
func (f *Feed) Leave(sessionID string) int {
	if f == nil || sessionID == "" {
		return 0
	}

	f.mu.Lock()
	cl := f.subscribers[sessionID]
	delete(f.subscribers, sessionID)
	n := len(f.subscribers)
	f.mu.Unlock()

	// close after removal so no broadcaster still holds the client
	if cl != nil {
		cl.Close()
	}

	f.log.Info("feed.subscriber.leave", "list_id", f.ListID, "session_id", sessionID)
	return n
}

// Len returns the number of subscribers.
func (f *Feed) Len() int {
	if f == nil {
		return 0
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Broadcast sends env to every subscriber and returns how many accepted it.
func (f *Feed) Broadcast(env v1.Envelope) int {
	if f == nil {
		return 0
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	sent := 0
	for _, s := range f.subscribers {
		if s.Offer(env) {
			sent++
		}
	}
	return sent
}
