// Package token mints the opaque join tokens carried by invite links.
//
// Tokens are base64url (no padding) encodings of crypto/rand bytes.
// The raw token is never logged; use Fingerprint for log fields.
package token
