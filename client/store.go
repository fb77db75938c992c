package client

import (
	"sync"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

// ProfileKind tags the profile union. An unverified profile comes from the
// durable snapshot and is display-only; authorization decisions require a
// verified profile plus an access token.
type ProfileKind int

const (
	ProfileEmpty ProfileKind = iota
	ProfileUnverified
	ProfileVerified
)

// ProfileState is the tagged profile union. User is nil exactly when Kind is
// ProfileEmpty.
type ProfileState struct {
	Kind ProfileKind
	User *kogu.UserProfile
}

// Session is a point-in-time copy of the store's state.
type Session struct {
	Profile         ProfileState
	AccessToken     string
	IsAuthenticated bool
	Hydrated        bool
}

// Store is the single source of truth for identity and credential on the
// client. It is injectable rather than global so tests can run isolated
// sessions side by side.
type Store struct {
	mu          sync.Mutex
	profile     ProfileState
	accessToken string
	hydrated    bool
	cache       SnapshotCache
	watchers    []func()
}

// NewStore builds an empty store over the given snapshot cache. cache may be
// nil, which disables persistence.
func NewStore(cache SnapshotCache) *Store {
	return &Store{cache: cache}
}

// SetSession installs a server-verified profile and access token, marks the
// session authenticated, and persists the durable snapshot.
func (s *Store) SetSession(user kogu.UserProfile, accessToken string) {
	s.mu.Lock()
	s.profile = ProfileState{Kind: ProfileVerified, User: &user}
	s.accessToken = accessToken
	cache := s.cache
	s.mu.Unlock()

	if cache != nil {
		_ = cache.Save(Snapshot{User: user, AccessToken: accessToken, IsAuthenticated: accessToken != ""})
	}
}

// SetUser replaces the profile without touching the access token. The new
// profile is treated as verified; use SetUnverifiedUser for snapshot data.
func (s *Store) SetUser(user kogu.UserProfile) {
	s.mu.Lock()
	s.profile = ProfileState{Kind: ProfileVerified, User: &user}
	cache := s.cache
	token := s.accessToken
	s.mu.Unlock()

	if cache != nil {
		_ = cache.Save(Snapshot{User: user, AccessToken: token, IsAuthenticated: token != ""})
	}
}

// SetUnverifiedUser installs an optimistic profile from the durable snapshot.
// It never makes the session authenticated.
func (s *Store) SetUnverifiedUser(user kogu.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = ProfileState{Kind: ProfileUnverified, User: &user}
}

// SetAccessToken replaces only the credential, keeping the current profile.
func (s *Store) SetAccessToken(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
}

// Clear resets the store to its initial empty state, invalidates the durable
// snapshot, and notifies invalidation watchers.
func (s *Store) Clear() {
	s.mu.Lock()
	s.profile = ProfileState{Kind: ProfileEmpty}
	s.accessToken = ""
	cache := s.cache
	watchers := make([]func(), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	if cache != nil {
		_ = cache.Invalidate()
	}
	for _, watcher := range watchers {
		watcher()
	}
}

// MarkHydrated records that bootstrap has finished, in any outcome.
func (s *Store) MarkHydrated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrated = true
}

// Hydrated reports whether bootstrap has completed.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// AccessToken returns the current bearer credential, possibly empty.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// IsAuthenticated reports whether a verified profile and an access token are
// both present. Optimistic snapshot profiles never count.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAuthenticatedLocked()
}

func (s *Store) isAuthenticatedLocked() bool {
	return s.profile.Kind == ProfileVerified && s.profile.User != nil && s.accessToken != ""
}

// Session returns a copy of the full session state.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile := s.profile
	if profile.User != nil {
		user := *profile.User
		profile.User = &user
	}
	return Session{
		Profile:         profile,
		AccessToken:     s.accessToken,
		IsAuthenticated: s.isAuthenticatedLocked(),
		Hydrated:        s.hydrated,
	}
}

// LoadSnapshot reads the durable snapshot, if any.
func (s *Store) LoadSnapshot() (Snapshot, bool) {
	s.mu.Lock()
	cache := s.cache
	s.mu.Unlock()

	if cache == nil {
		return Snapshot{}, false
	}
	snapshot, ok, err := cache.Load()
	if err != nil {
		return Snapshot{}, false
	}
	return snapshot, ok
}

// OnInvalidate registers a watcher run after every Clear. Watchers let other
// parts of the process (or other tabs, via their own transport) react to a
// session ending.
func (s *Store) OnInvalidate(watcher func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, watcher)
}
