package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrRefreshHashMismatch is returned when the presented refresh secret
	// does not match the stored digest. The caller treats this as reuse of a
	// rotated-out token.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")
	// ErrConflict is returned when the rotation CAS loop exhausts its
	// retries against concurrent writers.
	ErrConflict = errors.New("session store conflict")
)

const rotateMaxRetries = 4

// Store is the Redis-backed session store. All keys live under the prefix
// given to NewStore.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Save persists a session with the given TTL and indexes it under the
// owning user.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
		pipe.Expire(ctx, s.userKey(sess.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by ID. Expired records are deleted on read and
// reported as redis.Nil, same as missing ones.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	if time.Now().Unix() >= sess.ExpiresAt {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	return sess, nil
}

// Delete removes a session and its index entry. Deleting a missing session
// is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// Corrupt blob: drop the key anyway.
		if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}

	return s.deleteSessionAndIndex(ctx, sess.UserID, sessionID)
}

// DeleteAllForUser removes every indexed session for a user.
//
// Not fully atomic: a session created between the SMEMBERS read and the
// delete pipeline is not captured. The stray session expires naturally or
// falls to the next call.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, sid := range sessionIDs {
		keys = append(keys, s.key(sid))
	}
	keys = append(keys, userKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ActiveSessionIDs returns the indexed session IDs for a user. Some may
// already be expired; callers that need certainty must Get each one.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping reports Redis availability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// RotateRefreshHash atomically replaces the stored refresh digest, but only
// when the caller presents the digest currently on record. The compare and
// swap runs under WATCH so concurrent rotations of the same session cannot
// both win. The remaining TTL is preserved.
//
// A mismatch returns [ErrRefreshHashMismatch] and the caller is expected to
// invalidate the session.
func (s *Store) RotateRefreshHash(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	nextHash [32]byte,
) (*Session, error) {
	key := s.key(sessionID)

	var rotated *Session

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}

		sess, err := Decode(data)
		if err != nil {
			return err
		}
		sess.SessionID = sessionID

		if time.Now().Unix() >= sess.ExpiresAt {
			return redis.Nil
		}
		if sess.RefreshHash != providedHash {
			return ErrRefreshHashMismatch
		}

		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if ttl <= 0 {
			return redis.Nil
		}

		sess.RefreshHash = nextHash
		encoded, err := Encode(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		rotated = sess
		return nil
	}

	for i := 0; i < rotateMaxRetries; i++ {
		err := s.redis.Watch(ctx, txn, key)
		switch {
		case err == nil:
			return rotated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil), errors.Is(err, ErrRefreshHashMismatch):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil, ErrConflict
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
