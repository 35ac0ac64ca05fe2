// Package v1 defines the live activity feed protocol v1 contract.
//
// It is shared between the server and clients and must stay dependency-light.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is the websocket subprotocol a client must request.
const Subprotocol = "tasklist.feed.v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a session handshake (client -> server).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the handshake (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeEvent carries one appended activity event (server -> subscribers).
	TypeEvent = "event"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	ListID  string          `json:"list_id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello, TypeHelloAck, TypeEvent, TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// HelloPayload is sent by the client to initiate a session.
type HelloPayload struct{}

// HelloAckPayload names the session and the list it is subscribed to.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
	ListID    string `json:"list_id"`
}

// EventPayload mirrors an activity event as stored.
type EventPayload struct {
	EventID string         `json:"event_id"`
	ListID  string         `json:"list_id"`
	Type    string         `json:"type"`
	At      int64          `json:"at"`
	ActorID *string        `json:"actor_id"`
	Data    map[string]any `json:"data"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
