package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "kogu")
	return store, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession() *Session {
	now := time.Now()
	return &Session{
		SessionID:      "sid-1",
		UserID:         "u-1",
		Role:           "resident",
		Status:         1,
		AccountVersion: 1,
		RefreshHash:    [32]byte{1},
		CreatedAt:      now.Unix(),
		ExpiresAt:      now.Add(time.Hour).Unix(),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession()

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != sess.UserID || got.Role != sess.Role || got.RefreshHash != sess.RefreshHash {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.AccountVersion != sess.AccountVersion || got.Status != sess.Status {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	ids, err := store.ActiveSessionIDs(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("active session ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != sess.SessionID {
		t.Fatalf("expected index entry, got %v", ids)
	}
}

func TestGetExpiredSessionIsDeleted(t *testing.T) {
	store, rdb, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession()
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if _, err := store.Get(ctx, sess.SessionID); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for expired session, got %v", err)
	}

	exists, err := rdb.Exists(ctx, store.key(sess.SessionID)).Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 0 {
		t.Fatal("expired session key not cleaned up")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, rdb, done := newStoreTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession()

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	members, err := rdb.SMembers(ctx, store.userKey(sess.UserID)).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no user index members, got %v", members)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store, rdb, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	for _, sid := range []string{"sid-1", "sid-2", "sid-3"} {
		sess := testSession()
		sess.SessionID = sid
		if err := store.Save(ctx, sess, time.Hour); err != nil {
			t.Fatalf("save %s: %v", sid, err)
		}
	}

	if err := store.DeleteAllForUser(ctx, "u-1"); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	for _, sid := range []string{"sid-1", "sid-2", "sid-3"} {
		if _, err := store.Get(ctx, sid); !errors.Is(err, redis.Nil) {
			t.Fatalf("session %s survived: %v", sid, err)
		}
	}
	exists, err := rdb.Exists(ctx, store.userKey("u-1")).Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 0 {
		t.Fatal("user index key not removed")
	}
}

func TestRotateRefreshHash(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession()

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}

	next := [32]byte{2}
	rotated, err := store.RotateRefreshHash(ctx, sess.SessionID, sess.RefreshHash, next)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.RefreshHash != next {
		t.Fatal("rotated session carries old hash")
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get after rotate: %v", err)
	}
	if got.RefreshHash != next {
		t.Fatal("stored session carries old hash")
	}
	if got.ExpiresAt != sess.ExpiresAt {
		t.Fatal("rotation must not extend the absolute expiry")
	}

	// The displaced hash no longer rotates.
	if _, err := store.RotateRefreshHash(ctx, sess.SessionID, sess.RefreshHash, [32]byte{3}); !errors.Is(err, ErrRefreshHashMismatch) {
		t.Fatalf("expected ErrRefreshHashMismatch, got %v", err)
	}
}

func TestRotateRefreshHashMissingSession(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()

	_, err := store.RotateRefreshHash(context.Background(), "missing", [32]byte{1}, [32]byte{2})
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestEncodeDecodeRejectsBadVersion(t *testing.T) {
	data, err := Encode(testSession())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[0] = 99
	if _, err := Decode(data); err == nil {
		t.Fatal("expected decode failure for unknown version")
	}
}
