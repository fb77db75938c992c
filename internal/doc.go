// Package internal holds primitives shared by the engine packages:
// session identifiers, OTP generation, and hashing helpers. Nothing in here
// is importable from outside the module.
package internal
