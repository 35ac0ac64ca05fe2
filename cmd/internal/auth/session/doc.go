// Package session issues and verifies the signed session tokens that carry
// a user's identity into the HTTP and websocket layers.
//
// Tokens are HS256 JWTs whose subject is the user id. A request presents one
// either as a Bearer header or in the session cookie.
package session
