// Package main provides a CI-friendly smoke test for the live activity feed.
//
// It validates:
//   - list creation over HTTP
//   - feed handshake + subprotocol selection
//   - hello/ack naming the subscribed list
//   - task creation fans out a task.created event to every subscriber
//   - the same event is visible in the paged history
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "tasklist/shared/contracts/feed/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	name      string
	conn      *websocket.Conn
	sessionID string

	inbox chan v1.Envelope
	errCh chan error
}

type api struct {
	base    *url.URL
	token   string
	origin  string
	timeout time.Duration
}

func main() {
	var (
		baseURL = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL of the server")
		token   = flag.String("token", os.Getenv("TASKLIST_TOKEN"), "Bearer token (see `tasklist token <user-id>`)")
		origin  = flag.String("origin", "", "Origin header to send on the websocket handshake")
		title   = flag.String("title", "smoke task", "Title of the task to create")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -base: %v", err)
	}
	if strings.TrimSpace(*token) == "" {
		fatalf("missing -token")
	}
	c := &api{base: base, token: strings.TrimSpace(*token), origin: *origin, timeout: *timeout}
	root := context.Background()

	var list struct {
		ID string `json:"id"`
	}
	c.mustDo(root, http.MethodPost, "/lists", map[string]any{"name": fmt.Sprintf("smoke-%d", time.Now().UnixNano())}, http.StatusCreated, &list)
	defer c.mustDo(root, http.MethodDelete, "/lists/"+list.ID, nil, http.StatusNoContent, nil)

	wsURL := c.feedURL(list.ID)
	a := mustConnect(root, "A", wsURL, c, list.ID)
	defer closeWS(a.conn)
	b := mustConnect(root, "B", wsURL, c, list.ID)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: list=%s A=%s B=%s\n", list.ID, a.sessionID, b.sessionID)
	}

	var created struct {
		ID string `json:"id"`
	}
	c.mustDo(root, http.MethodPost, "/lists/"+list.ID+"/tasks", map[string]any{"title": *title}, http.StatusCreated, &created)

	evA := mustAssertEvent(root, a, list.ID, "task.created", *timeout)
	evB := mustAssertEvent(root, b, list.ID, "task.created", *timeout)
	if evA.EventID != evB.EventID {
		fatalf("fanout event id mismatch: A=%q B=%q", evA.EventID, evB.EventID)
	}
	if got, _ := evA.Data["taskId"].(string); got != created.ID {
		fatalf("event taskId mismatch: got=%q want=%q", got, created.ID)
	}

	var page struct {
		Items []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"items"`
	}
	c.mustDo(root, http.MethodGet, "/lists/"+list.ID+"/events?pageSize=5", nil, http.StatusOK, &page)
	if len(page.Items) == 0 || page.Items[0].ID != evA.EventID {
		fatalf("history missing newest event %q: %+v", evA.EventID, page.Items)
	}

	fmt.Printf("OK: list=%s task=%s event=%s A=%s B=%s\n", list.ID, created.ID, evA.EventID, a.sessionID, b.sessionID)
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func (c *api) feedURL(listID string) string {
	u := *c.base
	u.Scheme = "ws"
	if c.base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/lists/" + url.PathEscape(listID) + "/events/ws"
	return u.String()
}

func (c *api) mustDo(parent context.Context, method, path string, body any, wantStatus int, out any) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(mustJSON(body))
	}
	ref, err := url.Parse(path)
	if err != nil {
		fatalf("bad path %q: %v", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), rd)
	if err != nil {
		fatalf("build %s %s: %v", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d body=%s", method, path, resp.StatusCode, wantStatus, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func mustConnect(parent context.Context, name, wsURL string, c *api, listID string) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.token)
	if strings.TrimSpace(c.origin) != "" {
		h.Set("Origin", c.origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)

	sc := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 64),
		errCh: make(chan error, 1),
	}
	sc.startReadLoop()

	hello := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeHello,
		ID:      name + "-hello",
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.HelloPayload{}),
	}
	mustWriteWithTimeout(parent, conn, hello, c.timeout)

	ack := sc.mustReadUntilType(parent, v1.TypeHelloAck, c.timeout)
	var p v1.HelloAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal hello_ack payload (%s): %v", name, err)
	}
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("hello_ack missing session_id (%s)", name)
	}
	if p.ListID != listID {
		fatalf("hello_ack list_id mismatch (%s): got=%q want=%q", name, p.ListID, listID)
	}
	sc.sessionID = p.SessionID
	return sc
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}
			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}
			if err := env.Validate(); err != nil {
				c.fail(fmt.Errorf("bad envelope: %w", err))
				return
			}
			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func mustAssertEvent(parent context.Context, c *smokeClient, listID, eventType string, stepTimeout time.Duration) v1.EventPayload {
	env := c.mustReadUntilType(parent, v1.TypeEvent, stepTimeout)
	if env.ListID != listID {
		fatalf("event list_id mismatch (%s): got=%q want=%q", c.name, env.ListID, listID)
	}
	var p v1.EventPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal event payload (%s): %v", c.name, err)
	}
	if p.Type != eventType {
		fatalf("event type mismatch (%s): got=%q want=%q", c.name, p.Type, eventType)
	}
	if strings.TrimSpace(p.EventID) == "" || p.At <= 0 {
		fatalf("event missing id or timestamp (%s): %+v", c.name, p)
	}
	return p
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, mustJSON(env)); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
