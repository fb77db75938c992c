package session

// Session is the server-side record backing one refresh credential.
// SessionID is the Redis key suffix and is not part of the encoded blob.
type Session struct {
	SessionID      string
	UserID         string
	Role           string
	Status         uint8
	AccountVersion uint32
	RefreshHash    [32]byte
	CreatedAt      int64
	ExpiresAt      int64
}
