// Package session implements the Redis-backed server session store.
//
// A session record is a compact binary blob keyed by session ID, plus a
// per-user set of session IDs used for logout-all. The record carries the
// SHA-256 of the current refresh secret; rotation replaces that digest with
// an optimistic WATCH transaction so concurrent refreshes cannot both
// succeed with the same credential.
//
// Session lifetime is absolute. Rotation keeps the remaining TTL and never
// extends it.
package session
