// Package kogu implements the authentication and session core of the Kogu
// condominium management platform: resident registration with email OTP
// verification, login with Argon2id credential checks, short-lived JWT access
// tokens, opaque rotating refresh tokens with reuse detection, password
// reset, logout, rate limiting, audit events, and in-process metrics.
//
// Sessions live in Redis. Accounts live behind the [UserProvider] interface;
// the canonical implementation is store/sqlite. HTTP wiring lives in httpapi,
// and the client-side session lifecycle (token store, refresh-and-retry HTTP
// client, bootstrapper, route guard) lives in the client package.
//
// An [Engine] is constructed once through [New] and is safe for concurrent
// use afterwards.
package kogu
