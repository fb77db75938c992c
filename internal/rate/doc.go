// Package rate provides Redis-backed fixed-window counters used by the
// engine's login, refresh, registration, and OTP throttles.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. When a
// limit trips, the key's remaining TTL is surfaced so callers can report a
// retry-after hint. Key prefixes:
//   - "al:" login per-email
//   - "ali:" login per-IP
//   - "ar:" refresh per-session
//   - "ac:" account creation per-IP
//   - "ao:" OTP resend per-email
package rate
