// Package refresh implements the opaque refresh token codec.
//
// A refresh token is base64url(sessionID[16] || secret[32]), 48 raw bytes.
// The engine stores only SHA-256(secret) inside the session record; a
// presented token is valid when its decoded secret hashes to the stored
// digest. Rotation swaps the digest atomically, and a token whose digest no
// longer matches signals reuse of a rotated-out credential.
package refresh
