package kogu

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/refresh"
)

const (
	resetGrantKeyPrefix     = "krg"
	resetGrantRecordVersion = 1
)

var (
	errResetGrantNotFound         = errors.New("reset grant not found")
	errResetGrantMismatch         = errors.New("reset grant secret mismatch")
	errResetGrantRedisUnavailable = errors.New("reset grant redis unavailable")
)

// resetGrantRecord is the single-use authorization minted after a correct
// password reset OTP. The grant token handed to the client reuses the
// refresh token wire shape: id[16] || secret[32].
type resetGrantRecord struct {
	UserID     string
	SecretHash [32]byte
	ExpiresAt  int64
}

type resetGrantStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newResetGrantStore(redisClient redis.UniversalClient) *resetGrantStore {
	return &resetGrantStore{
		redis:  redisClient,
		prefix: resetGrantKeyPrefix,
	}
}

func (s *resetGrantStore) key(grantID string) string {
	return s.prefix + ":" + grantID
}

func (s *resetGrantStore) Save(ctx context.Context, grantID string, record *resetGrantRecord, ttl time.Duration) error {
	encoded, err := encodeResetGrantRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(grantID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errResetGrantRedisUnavailable, err)
	}

	return nil
}

// Consume removes the grant with GETDEL, so a replayed token finds nothing
// even when the first use is still in flight. The secret comparison happens
// after removal; a mismatch burns the grant.
func (s *resetGrantStore) Consume(ctx context.Context, grantID string, secret refresh.Secret) (*resetGrantRecord, error) {
	data, err := s.redis.GetDel(ctx, s.key(grantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errResetGrantNotFound
		}
		return nil, fmt.Errorf("%w: %v", errResetGrantRedisUnavailable, err)
	}

	record, err := decodeResetGrantRecord(data)
	if err != nil {
		return nil, err
	}

	if time.Now().Unix() > record.ExpiresAt {
		return nil, errResetGrantNotFound
	}

	providedHash := refresh.Hash(secret)
	if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
		return nil, errResetGrantMismatch
	}

	return record, nil
}

func encodeResetGrantRecord(record *resetGrantRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetGrantRecordVersion)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("reset grant user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeResetGrantRecord(data []byte) (*resetGrantRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetGrantRecordVersion {
		return nil, errors.New("invalid reset grant record version")
	}

	record := &resetGrantRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
