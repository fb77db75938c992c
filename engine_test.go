package kogu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	byEmail map[string]string

	createErr error
	updateErr error
	statusErr error

	getByEmailCalls     int
	updatePasswordCalls int
	createCalls         int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:   make(map[string]UserRecord),
		byEmail: make(map[string]string),
	}
}

func (m *mockUserProvider) add(user UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = user
	m.byEmail[user.Email] = user.UserID
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailCalls++

	userID, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, errors.New("not found")
	}
	return m.users[userID], nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return UserRecord{}, errors.New("not found")
	}
	return user, nil
}

func (m *mockUserProvider) CreateUser(_ context.Context, input CreateUserInput) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if m.createErr != nil {
		return UserRecord{}, m.createErr
	}
	if _, exists := m.byEmail[input.Email]; exists {
		return UserRecord{}, ErrProviderDuplicateEmail
	}

	user := UserRecord{
		UserID:         fmt.Sprintf("u%d", len(m.users)+1),
		Email:          input.Email,
		PasswordHash:   input.PasswordHash,
		FullName:       input.FullName,
		Phone:          input.Phone,
		Unit:           input.Unit,
		Role:           input.Role,
		Status:         input.Status,
		AccountVersion: 1,
	}
	m.users[user.UserID] = user
	m.byEmail[user.Email] = user.UserID
	return user, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++

	if m.updateErr != nil {
		return m.updateErr
	}
	user, ok := m.users[userID]
	if !ok {
		return errors.New("not found")
	}
	user.PasswordHash = newHash
	m.users[userID] = user
	return nil
}

func (m *mockUserProvider) UpdateAccountStatus(_ context.Context, userID string, status AccountStatus) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusErr != nil {
		return UserRecord{}, m.statusErr
	}
	user, ok := m.users[userID]
	if !ok {
		return UserRecord{}, errors.New("not found")
	}
	user.Status = status
	m.users[userID] = user
	return user, nil
}

func (m *mockUserProvider) MarkEmailVerified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return errors.New("not found")
	}
	user.EmailVerified = true
	m.users[userID] = user
	return nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 16 * 1024
	cfg.Password.Time = 1
	cfg.PasswordReset.EnumerationDelay = time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client, up UserProvider, cfg Config) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(up).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func addActiveUser(t *testing.T, engine *Engine, up *mockUserProvider, email, pass string) UserRecord {
	t.Helper()

	hash, err := engine.passwordHash.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	user := UserRecord{
		UserID:         "u-" + email,
		Email:          email,
		PasswordHash:   hash,
		FullName:       "Test User",
		Role:           RoleResident,
		Status:         AccountActive,
		EmailVerified:  true,
		AccountVersion: 1,
	}
	up.add(user)
	return user
}

func TestLoginSuccessIssuesTokenPair(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected non-empty token pair")
	}
	if result.User.Email != "alice@example.com" {
		t.Fatalf("unexpected profile email %q", result.User.Email)
	}

	auth, err := engine.Validate(ctx, result.AccessToken, ModeStrict)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if auth.Role != RoleResident {
		t.Fatalf("expected resident role, got %v", auth.Role)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	if _, err := engine.Login(ctx, "  Alice@Example.COM ", "correct-password-123"); err != nil {
		t.Fatalf("Login with unnormalized email failed: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	if _, err := engine.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := engine.Login(ctx, "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	cfg := testConfig()
	cfg.Security.MaxLoginAttempts = 2
	cfg.Security.LoginCooldown = time.Minute
	engine := newTestEngine(t, rdb, up, cfg)
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	_, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	wait, ok := RetryAfter(err)
	if !ok || wait <= 0 {
		t.Fatalf("expected positive retry-after, got %v ok=%v", wait, ok)
	}
}

func TestLoginPendingAccountBlocked(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	user := addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")
	user.Status = AccountPendingVerification
	user.EmailVerified = false
	up.add(user)

	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestLoginDisabledAccountBlocked(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	user := addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")
	user.Status = AccountDisabled
	up.add(user)

	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestRefreshRotatesCredential(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	access, rotated, err := engine.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if access == "" || rotated == "" {
		t.Fatal("expected fresh token pair")
	}
	if rotated == result.RefreshToken {
		t.Fatal("expected refresh token to rotate")
	}

	if _, err := engine.Validate(ctx, access, ModeStrict); err != nil {
		t.Fatalf("Validate after refresh failed: %v", err)
	}
}

func TestRefreshReuseBurnsSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	access, _, err := engine.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// The pre-rotation token is now stale; presenting it is reuse.
	if _, _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}

	// Reuse detection kills the whole session.
	if _, err := engine.Validate(ctx, access, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after reuse, got %v", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())

	if _, _, err := engine.Refresh(context.Background(), "not-a-token"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
}

func TestValidateModes(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	auth, err := engine.ValidateAccess(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}

	if err := engine.Logout(ctx, auth.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// JWT-only validation keeps accepting the signed token.
	if _, err := engine.Validate(ctx, result.AccessToken, ModeJWTOnly); err != nil {
		t.Fatalf("ModeJWTOnly after logout failed: %v", err)
	}
	// Strict validation notices the dead session.
	if _, err := engine.Validate(ctx, result.AccessToken, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound in strict mode, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())

	if _, err := engine.Validate(context.Background(), "garbage", ModeStrict); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLogoutAllKillsEverySession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	user := addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	first, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	second, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	if err := engine.LogoutAll(ctx, user.UserID); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}

	for i, token := range []string{first.AccessToken, second.AccessToken} {
		if _, err := engine.Validate(ctx, token, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("session %d: expected ErrSessionNotFound, got %v", i, err)
		}
	}
}

func TestLogoutByAccessToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := engine.LogoutByAccessToken(ctx, result.AccessToken); err != nil {
		t.Fatalf("LogoutByAccessToken failed: %v", err)
	}
	if _, err := engine.Validate(ctx, result.AccessToken, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestChangePasswordFlow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	user := addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.ChangePassword(ctx, user.UserID, "wrong", "new-password-456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong old password, got %v", err)
	}
	if err := engine.ChangePassword(ctx, user.UserID, "correct-password-123", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if err := engine.ChangePassword(ctx, user.UserID, "correct-password-123", "correct-password-123"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}

	if err := engine.ChangePassword(ctx, user.UserID, "correct-password-123", "new-password-456"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// Every pre-change session is revoked.
	if _, err := engine.Validate(ctx, result.AccessToken, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after password change, got %v", err)
	}

	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "new-password-456"); err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}
}

func TestCurrentUserReturnsProfile(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	profile, err := engine.CurrentUser(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if profile.Email != "alice@example.com" || profile.Role != RoleResident {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestSetAccountStatusRevokesSessions(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	user := addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.SetAccountStatus(ctx, user.UserID, AccountDisabled); err != nil {
		t.Fatalf("SetAccountStatus failed: %v", err)
	}
	if _, err := engine.Validate(ctx, result.AccessToken, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after disable, got %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}
