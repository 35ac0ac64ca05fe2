// Package model defines the persisted entities of the shared-list tracker:
// users, lists, memberships, invites, tasks, and activity events.
//
// All identifiers are opaque strings and all timestamps are epoch milliseconds.
package model
