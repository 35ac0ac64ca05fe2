package api

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		remote     string
		forwarded  string
		realIP     string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "untrusted header ignored", remote: "10.0.0.1:5555", forwarded: "1.2.3.4", want: "10.0.0.1"},
		{name: "forwarded first valid", remote: "10.0.0.1:5555", forwarded: "junk, 1.2.3.4, 5.6.7.8", trustProxy: true, want: "1.2.3.4"},
		{name: "real ip fallback", remote: "10.0.0.1:5555", realIP: "9.9.9.9", trustProxy: true, want: "9.9.9.9"},
		{name: "unparsable remote", remote: "nowhere", want: ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tc.remote
		if tc.forwarded != "" {
			r.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		if tc.realIP != "" {
			r.Header.Set("X-Real-IP", tc.realIP)
		}
		got := ""
		if ip := clientIP(r, tc.trustProxy); ip != nil {
			got = ip.String()
		}
		if got != tc.want {
			t.Fatalf("%s: ip=%q want=%q", tc.name, got, tc.want)
		}
	}
}
