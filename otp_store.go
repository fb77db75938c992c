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
)

const (
	otpKeyPrefix      = "kotp"
	otpRecordVersion  = 1
	otpPurposeVerify  = "verify"
	otpPurposeReset   = "reset"
	otpConsumeRetries = 4
)

var (
	errOTPNotFound          = errors.New("otp record not found")
	errOTPMismatch          = errors.New("otp code mismatch")
	errOTPAttemptsExceeded  = errors.New("otp attempts exceeded")
	errOTPRedisUnavailable  = errors.New("otp redis unavailable")
	errOTPRecordTooManyTrys = errors.New("otp consume retries exhausted")
)

// otpRecord is one outstanding challenge, keyed by purpose and normalized
// email. Only the code's digest is stored.
type otpRecord struct {
	UserID    string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

type otpStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newOTPStore(redisClient redis.UniversalClient) *otpStore {
	return &otpStore{
		redis:  redisClient,
		prefix: otpKeyPrefix,
	}
}

func (s *otpStore) key(purpose, email string) string {
	return s.prefix + ":" + purpose + ":" + email
}

// Save overwrites any outstanding challenge for the purpose+email pair.
// Reissuing a code therefore invalidates the previous one.
func (s *otpStore) Save(ctx context.Context, purpose, email string, record *otpRecord, ttl time.Duration) error {
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(purpose, email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOTPRedisUnavailable, err)
	}

	return nil
}

// Delete removes an outstanding challenge, if any.
func (s *otpStore) Delete(ctx context.Context, purpose, email string) error {
	if err := s.redis.Del(ctx, s.key(purpose, email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOTPRedisUnavailable, err)
	}
	return nil
}

// Consume checks providedHash against the stored challenge under a WATCH
// transaction. A correct code deletes the record and returns it. A wrong
// code increments the attempt counter in place, burning the record once
// maxAttempts is reached. Concurrent submissions retry the CAS a bounded
// number of times.
func (s *otpStore) Consume(
	ctx context.Context,
	purpose, email string,
	providedHash [32]byte,
	maxAttempts int,
) (*otpRecord, error) {
	key := s.key(purpose, email)

	for i := 0; i < otpConsumeRetries; i++ {
		var matched *otpRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOTPRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				if err := txDel(ctx, tx, key); err != nil {
					return err
				}
				return errOTPNotFound
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					if err := txDel(ctx, tx, key); err != nil {
						return err
					}
					return errOTPAttemptsExceeded
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					if err := txDel(ctx, tx, key); err != nil {
						return err
					}
					return errOTPNotFound
				}

				updated, err := encodeOTPRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errOTPMismatch
			}

			if err := txDel(ctx, tx, key); err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil),
				errors.Is(err, errOTPNotFound),
				errors.Is(err, errOTPMismatch),
				errors.Is(err, errOTPAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", errOTPRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, errOTPRecordTooManyTrys
}

func txDel(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

func encodeOTPRecord(record *otpRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersion)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("otp record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*otpRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersion {
		return nil, errors.New("invalid otp record version")
	}

	record := &otpRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
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

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
