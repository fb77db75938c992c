// Package client is the Go SDK for the Kogu API. It owns the client side of
// the session lifecycle: a token store holding the current profile and access
// token, an HTTP client that attaches the bearer token and transparently
// refreshes it once on a 401, a bootstrapper that restores a session from the
// durable snapshot at startup, and a route guard that turns session state
// into navigation decisions.
//
// The refresh credential lives in an httpOnly cookie managed by the server;
// the SDK never reads it, it only carries the cookie jar.
package client
