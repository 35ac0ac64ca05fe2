package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	v1 "tasklist/shared/contracts/feed/v1"

	"github.com/coder/websocket"
)

func startGateway(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gw, err := NewGateway(discardLogger(), hub, GatewayConfig{
		Authenticate: func(r *http.Request) (string, error) {
			user := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if user == "" {
				return "", errors.New("no token")
			}
			return user, nil
		},
		Authorize: func(_ context.Context, userID, listID string) error {
			if userID == "u1" && listID == "l1" {
				return nil
			}
			return fault.Forbidden("forbidden")
		},
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /lists/{id}/events/ws", gw)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func dialFeed(ctx context.Context, ts *httptest.Server, listID, user string) (*websocket.Conn, *http.Response, error) {
	h := http.Header{}
	if user != "" {
		h.Set("Authorization", "Bearer "+user)
	}
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/lists/" + listID + "/events/ws"
	return websocket.Dial(ctx, u, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
}

func readEnv(t *testing.T, ctx context.Context, c *websocket.Conn) v1.Envelope {
	t.Helper()
	_, b, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env v1.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestGateway_RejectsBeforeUpgrade(t *testing.T) {
	t.Parallel()

	ts := startGateway(t, NewHub(discardLogger()))
	cases := []struct {
		name   string
		list   string
		user   string
		status int
	}{
		{name: "unauthenticated", list: "l1", user: "", status: http.StatusUnauthorized},
		{name: "not a member", list: "l1", user: "u2", status: http.StatusForbidden},
		{name: "other list", list: "l2", user: "u1", status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			c, resp, err := dialFeed(ctx, ts, tc.list, tc.user)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err == nil {
				_ = c.Close(websocket.StatusNormalClosure, "")
				t.Fatalf("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Fatalf("resp=%v want status=%d", resp, tc.status)
			}
		})
	}
}

func TestGateway_StreamsListEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub(discardLogger())
	ts := startGateway(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := dialFeed(ctx, ts, "l1", "u1")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	hello, _ := json.Marshal(v1.Envelope{V: v1.Version, Type: v1.TypeHello, Payload: json.RawMessage(`{}`)})
	if err := c.Write(ctx, websocket.MessageText, hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	ack := readEnv(t, ctx, c)
	if ack.Type != v1.TypeHelloAck {
		t.Fatalf("ack=%+v", ack)
	}
	var ap v1.HelloAckPayload
	if err := json.Unmarshal(ack.Payload, &ap); err != nil || ap.ListID != "l1" || ap.SessionID == "" {
		t.Fatalf("ack payload=%+v err=%v", ap, err)
	}

	if n := hub.Deliver(model.Event{ID: "e1", ListID: "l1", Type: model.EventListUpdated, At: 10, Data: map[string]any{}}); n != 1 {
		t.Fatalf("delivered=%d want=1", n)
	}
	ev := readEnv(t, ctx, c)
	if ev.Type != v1.TypeEvent || ev.ListID != "l1" {
		t.Fatalf("event=%+v", ev)
	}

	bad, _ := json.Marshal(v1.Envelope{V: v1.Version, Type: "message_send"})
	if err := c.Write(ctx, websocket.MessageText, bad); err != nil {
		t.Fatalf("write: %v", err)
	}
	if env := readEnv(t, ctx, c); env.Type != v1.TypeError {
		t.Fatalf("env=%+v want error", env)
	}
}
