package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Secret = strings.Repeat("s", 32)
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueVerify(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	now := time.Unix(1_700_000_000, 0).UTC()
	tok, exp, err := m.Issue("u1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("exp=%v", exp)
	}

	c, err := m.Verify(tok, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.UserID != "u1" || c.Issuer != "tasklist" || !c.ExpiresAt.Equal(exp) {
		t.Fatalf("claims=%+v", c)
	}
}

func TestVerify_Rejections(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	now := time.Unix(1_700_000_000, 0).UTC()
	tok, _, err := m.Issue("u1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := newTestManager(t, func(c *Config) { c.Secret = strings.Repeat("x", 32) })
	foreign, _, _ := other.Issue("u1", now)

	otherIssuer := newTestManager(t, func(c *Config) { c.Issuer = "someone-else" })
	wrongIss, _, _ := otherIssuer.Issue("u1", now)

	cases := []struct {
		name  string
		token string
		at    time.Time
		want  error
	}{
		{name: "expired", token: tok, at: now.Add(8 * 24 * time.Hour), want: ErrExpiredToken},
		{name: "wrong key", token: foreign, at: now, want: ErrInvalidToken},
		{name: "wrong issuer", token: wrongIss, at: now, want: ErrInvalidToken},
		{name: "garbage", token: "not.a.jwt", at: now, want: ErrInvalidToken},
		{name: "empty", token: "", at: now, want: ErrInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := m.Verify(tc.token, tc.at); !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want=%v", err, tc.want)
			}
		})
	}
}

func TestIssue_RequiresUser(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	if _, _, err := m.Issue("  ", time.Now()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err=%v want=%v", err, ErrInvalidToken)
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	tok, _, err := m.Issue("u1", time.Now().UTC())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	bearer := httptest.NewRequest(http.MethodGet, "/me", nil)
	bearer.Header.Set("Authorization", "Bearer "+tok)

	cookie := httptest.NewRequest(http.MethodGet, "/me", nil)
	cookie.AddCookie(&http.Cookie{Name: "sid", Value: tok})

	badScheme := httptest.NewRequest(http.MethodGet, "/me", nil)
	badScheme.Header.Set("Authorization", "Basic "+tok)

	devHeader := httptest.NewRequest(http.MethodGet, "/me", nil)
	devHeader.Header.Set("X-User-Id", "u1")

	cases := []struct {
		name    string
		req     *http.Request
		want    string
		wantErr error
	}{
		{name: "bearer", req: bearer, want: "u1"},
		{name: "cookie", req: cookie, want: "u1"},
		{name: "wrong scheme", req: badScheme, wantErr: ErrInvalidToken},
		{name: "identity header is ignored", req: devHeader, wantErr: ErrNoToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := m.Authenticate(tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err=%v want=%v", err, tc.wantErr)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got=%q err=%v want=%q", got, err, tc.want)
			}
		})
	}
}
