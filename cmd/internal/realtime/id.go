package realtime

import (
	"time"

	"tasklist/cmd/identity/ids"
	v1 "tasklist/shared/contracts/feed/v1"
)

// NewSessionID returns a ULID used as websocket session id.
func NewSessionID(now time.Time) (string, error) {
	return ids.NewULID(now)
}

func newEnvelope(typ, listID string, payload []byte, ts time.Time) (v1.Envelope, error) {
	id, err := ids.NewULID(ts)
	if err != nil {
		return v1.Envelope{}, err
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		ListID:  listID,
		TS:      ts,
		Payload: payload,
	}, nil
}
