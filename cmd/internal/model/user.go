package model

import (
	"strings"
	"time"
)

// User is a registered (or bootstrapped) account.
type User struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Avatar         *string `json:"avatar"`
	ExternalAuthID *string `json:"externalAuthId,omitempty"`
	CreatedAt      int64   `json:"createdAt"`
}

// DisplayName returns the name, falling back to the email local part.
func (u User) DisplayName() string {
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
