package client

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

func residentProfile() kogu.UserProfile {
	return kogu.UserProfile{
		ID:            "u-1",
		Email:         "alice@example.com",
		FullName:      "Alice",
		Unit:          "A-1203",
		Role:          kogu.RoleResident,
		Status:        "active",
		EmailVerified: true,
	}
}

func TestStoreStartsEmpty(t *testing.T) {
	store := NewStore(NewMemCache())

	session := store.Session()
	assert.Equal(t, ProfileEmpty, session.Profile.Kind)
	assert.Nil(t, session.Profile.User)
	assert.Empty(t, session.AccessToken)
	assert.False(t, session.IsAuthenticated)
	assert.False(t, session.Hydrated)
}

func TestSetSessionAuthenticates(t *testing.T) {
	cache := NewMemCache()
	store := NewStore(cache)

	store.SetSession(residentProfile(), "token-1")

	session := store.Session()
	assert.Equal(t, ProfileVerified, session.Profile.Kind)
	require.NotNil(t, session.Profile.User)
	assert.Equal(t, "alice@example.com", session.Profile.User.Email)
	assert.True(t, store.IsAuthenticated())

	snapshot, ok, err := cache.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "token-1", snapshot.AccessToken)
	assert.Equal(t, "u-1", snapshot.User.ID)
}

func TestUnverifiedProfileNeverAuthenticates(t *testing.T) {
	store := NewStore(NewMemCache())

	store.SetUnverifiedUser(residentProfile())
	store.SetAccessToken("token-1")

	// An optimistic snapshot profile plus a token must not count as a login.
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, ProfileUnverified, store.Session().Profile.Kind)
}

func TestVerifiedProfileWithoutTokenNotAuthenticated(t *testing.T) {
	store := NewStore(NewMemCache())

	store.SetUser(residentProfile())

	assert.False(t, store.IsAuthenticated())
}

func TestClearResetsEverything(t *testing.T) {
	cache := NewMemCache()
	store := NewStore(cache)
	store.SetSession(residentProfile(), "token-1")

	invalidated := 0
	store.OnInvalidate(func() { invalidated++ })

	store.Clear()

	session := store.Session()
	assert.Equal(t, ProfileEmpty, session.Profile.Kind)
	assert.Empty(t, session.AccessToken)
	assert.False(t, session.IsAuthenticated)
	assert.Equal(t, 1, invalidated)

	_, ok, err := cache.Load()
	require.NoError(t, err)
	assert.False(t, ok, "durable snapshot must be invalidated")
}

func TestSessionReturnsCopy(t *testing.T) {
	store := NewStore(nil)
	store.SetSession(residentProfile(), "token-1")

	session := store.Session()
	session.Profile.User.Email = "mutated@example.com"

	assert.Equal(t, "alice@example.com", store.Session().Profile.User.Email)
}

func TestMarkHydrated(t *testing.T) {
	store := NewStore(nil)
	assert.False(t, store.Hydrated())

	store.MarkHydrated()
	assert.True(t, store.Hydrated())

	// Clear ends the session but not the hydration state.
	store.Clear()
	assert.True(t, store.Hydrated())
}

func TestLoadSnapshotWithoutCache(t *testing.T) {
	store := NewStore(nil)

	_, ok := store.LoadSnapshot()
	assert.False(t, ok)
}

func TestFileCacheRoundTrip(t *testing.T) {
	path := t.TempDir() + "/nested/session.json"
	cache := NewFileCache(path)

	_, ok, err := cache.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	snapshot := Snapshot{User: residentProfile(), AccessToken: "token-1", IsAuthenticated: true}
	require.NoError(t, cache.Save(snapshot))

	got, ok, err := cache.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snapshot, got)

	require.NoError(t, cache.Invalidate())
	_, ok, err = cache.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	// Invalidating twice is fine.
	require.NoError(t, cache.Invalidate())
}

func TestFileCacheCorruptFile(t *testing.T) {
	path := t.TempDir() + "/session.json"
	cache := NewFileCache(path)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, ok, err := cache.Load()
	require.NoError(t, err)
	assert.False(t, ok, "corrupt snapshot reads as no snapshot")
}
