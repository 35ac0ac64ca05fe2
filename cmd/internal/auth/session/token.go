package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity envelope propagated across HTTP and websocket requests.
type Claims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

// Manager issues and verifies session tokens.
type Manager struct {
	cfg    Config
	secret []byte
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, secret: []byte(cfg.Secret)}, nil
}

// CookieName returns the configured session cookie name.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// Issue signs a token for userID valid from now for the configured TTL.
func (m *Manager) Issue(userID string, now time.Time) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	exp := now.Add(m.cfg.TTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    m.cfg.Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks the signature, issuer, and validity window of token at now.
func (m *Manager) Verify(token string, now time.Time) (Claims, error) {
	var rc jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &rc, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.cfg.ClockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if !parsed.Valid || strings.TrimSpace(rc.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}

	c := Claims{UserID: rc.Subject, Issuer: rc.Issuer}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}

// FromRequest extracts the raw token from the Authorization header, falling
// back to the session cookie.
func (m *Manager) FromRequest(r *http.Request) (string, error) {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
			return "", ErrInvalidToken
		}
		return strings.TrimSpace(tok), nil
	}
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), nil
	}
	return "", ErrNoToken
}

// Authenticate verifies the request's token and returns its user id.
func (m *Manager) Authenticate(r *http.Request) (string, error) {
	raw, err := m.FromRequest(r)
	if err != nil {
		return "", err
	}
	c, err := m.Verify(raw, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}
