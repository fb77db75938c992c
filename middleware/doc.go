// Package middleware exposes HTTP middleware adapters over Engine
// validation.
//
// # Guards
//
//   - [Guard]: enforcement mode from the Engine config.
//   - [RequireJWTOnly]: stateless JWT verification, no Redis call.
//   - [RequireStrict]: JWT + session store verification.
//   - [RequireRole]: role gate layered on top of a guard.
//
// Each guard reads the Authorization header, calls Engine validation, and
// injects the result into the request context. This package translates HTTP
// semantics into Engine calls; it makes no authentication decisions itself.
package middleware
