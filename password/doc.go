// Package password hashes and verifies credentials with Argon2id in PHC
// string format. NeedsUpgrade lets callers rehash stored credentials after a
// parameter bump; the engine does this opportunistically on login.
package password
