package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/internal"
)

const (
	// SecretSize is the byte length of the random refresh secret.
	SecretSize = 32

	tokenRawSize = 16 + SecretSize
)

// ErrInvalidToken is returned for tokens that do not decode to the expected
// shape.
var ErrInvalidToken = errors.New("invalid refresh token")

// Secret is the client-held half of a refresh credential.
type Secret [SecretSize]byte

// NewSecret returns a fresh random secret.
func NewSecret() (Secret, error) {
	var s Secret
	_, err := rand.Read(s[:])
	return s, err
}

// Hash returns the digest stored in the session record.
func Hash(s Secret) [32]byte {
	return sha256.Sum256(s[:])
}

// Encode packs a session ID and secret into the opaque wire token.
func Encode(sessionID string, secret Secret) (string, error) {
	sid, err := internal.ParseSessionID(sessionID)
	if err != nil {
		return "", ErrInvalidToken
	}

	var raw [tokenRawSize]byte
	copy(raw[:len(sid)], sid[:])
	copy(raw[len(sid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// Decode splits a wire token back into its session ID and secret.
func Decode(token string) (string, Secret, error) {
	var secret Secret

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, ErrInvalidToken
	}
	if len(raw) != tokenRawSize {
		return "", secret, ErrInvalidToken
	}

	var sid internal.SessionID
	copy(sid[:], raw[:len(sid)])
	copy(secret[:], raw[len(sid):])

	return sid.String(), secret, nil
}
