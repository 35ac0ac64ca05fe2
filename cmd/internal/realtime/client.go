package realtime

import (
	"sync"
	"sync/atomic"

	v1 "tasklist/shared/contracts/feed/v1"
)

const defaultSendQueue = 64

// Client is one websocket session subscribed to a list feed.
//
// Send is never closed by the server; done signals goroutines to stop.
// Producers go through Offer so a slow reader cannot stall a broadcast.
type Client struct {
	SessionID string
	UserID    string
	ListID    string
	Send      chan v1.Envelope

	dropped   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a subscriber of listID with a bounded send queue.
func NewClient(userID, listID, sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueue
	}
	return &Client{
		SessionID: sessionID,
		UserID:    userID,
		ListID:    listID,
		Send:      make(chan v1.Envelope, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Offer queues env without blocking. It reports false when the client is
// closing or its queue is full; a full queue counts as a drop.
func (c *Client) Offer(env v1.Envelope) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- env:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Dropped reports how many envelopes Offer discarded on a full queue.
func (c *Client) Dropped() uint64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Done is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop. Safe to call more than once.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
