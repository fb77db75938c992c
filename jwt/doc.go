// Package jwt wraps github.com/golang-jwt/jwt/v5 with the access token
// claim set used across the module: user ID, session ID, role, and the
// account version counter that invalidates tokens issued before a status or
// credential change.
//
// HS256 and Ed25519 are supported. Parsing pins the configured algorithm,
// applies bounded clock leeway, and rejects tokens issued unreasonably far
// in the future.
package jwt
