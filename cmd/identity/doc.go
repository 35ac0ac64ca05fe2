// Package identity owns user records: bootstrap on first contact, explicit
// creation, linking of external identities, and profile updates.
//
// Identity never authenticates anyone. Callers pass a user id that the
// session layer has already verified.
package identity
