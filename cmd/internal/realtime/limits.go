package realtime

import "time"

const (
	// Max bytes per inbound websocket frame. Clients only send handshakes.
	maxFrameBytes = 4 << 10

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection inbound limits (frames per window).
	rateLimitEvents = 20
	rateLimitWindow = 10 * time.Second
)
