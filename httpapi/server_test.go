package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/notify"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/password"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

type testServer struct {
	url     string
	store   *sqlite.Store
	mailbox *notify.MemMailbox
	client  *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "kogu.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := kogu.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 16 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.EnumerationDelay = time.Millisecond

	engine, err := kogu.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(store).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	mailbox := notify.NewMemMailbox()
	server := httptest.NewServer(NewServer(engine, store, mailbox, nil, Options{}).Handler())
	t.Cleanup(server.Close)

	return &testServer{
		url:     server.URL,
		store:   store,
		mailbox: mailbox,
		client:  server.Client(),
	}
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.url+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

var otpPattern = regexp.MustCompile(`\d{6,10}`)

func (ts *testServer) lastOTP(t *testing.T) string {
	t.Helper()
	messages := ts.mailbox.Messages()
	require.NotEmpty(t, messages, "expected an OTP mail")
	code := otpPattern.FindString(messages[len(messages)-1].Body)
	require.NotEmpty(t, code, "expected a code in the mail body")
	return code
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "kogu_refresh" && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("expected a refresh cookie")
	return nil
}

// seedAccount creates a verified active account directly in the store.
func (ts *testServer) seedAccount(t *testing.T, email, pass string, role kogu.Role) kogu.UserRecord {
	t.Helper()

	hasher, err := password.NewArgon2(password.Config{
		Memory: 16 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)
	hash, err := hasher.Hash(pass)
	require.NoError(t, err)

	user, err := ts.store.CreateUser(context.Background(), kogu.CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Seeded User",
		Role:         role,
		Status:       kogu.AccountActive,
	})
	require.NoError(t, err)
	require.NoError(t, ts.store.MarkEmailVerified(context.Background(), user.UserID))
	return user
}

func (ts *testServer) login(t *testing.T, email, pass string) (string, *http.Cookie) {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": pass,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := refreshCookie(t, resp)
	body := decodeBody[map[string]json.RawMessage](t, resp)
	var token string
	require.NoError(t, json.Unmarshal(body["access_token"], &token))
	return token, cookie
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":     "bob@example.com",
		"password":  "long-enough-pass",
		"full_name": "Bob",
		"unit":      "A-1203",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[map[string]string](t, resp)
	assert.NotEmpty(t, created["user_id"])

	// Login is refused until the OTP is confirmed.
	resp = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "long-enough-pass",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	code := ts.lastOTP(t)
	resp = ts.do(t, http.MethodPost, "/auth/register/accept", "", map[string]string{
		"email": "bob@example.com", "otp": code,
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	token, cookie := ts.login(t, "bob@example.com", "long-enough-pass")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/auth", cookie.Path)

	resp = ts.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decodeBody[kogu.UserProfile](t, resp)
	assert.Equal(t, "bob@example.com", profile.Email)
	assert.Equal(t, kogu.RoleResident, profile.Role)
	assert.True(t, profile.EmailVerified)
}

func TestRegisterAcceptWrongOTP(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "bob@example.com", "password": "long-enough-pass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/register/accept", "", map[string]string{
		"email": "bob@example.com", "otp": "000000",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshRotation(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "alice@example.com", "correct-password-123", kogu.RoleResident)
	_, cookie := ts.login(t, "alice@example.com", "correct-password-123")

	resp := ts.do(t, http.MethodPost, "/auth/refresh", "", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := refreshCookie(t, resp)
	body := decodeBody[map[string]string](t, resp)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEqual(t, cookie.Value, rotated.Value, "refresh must rotate the credential")

	// Replaying the displaced credential burns the session.
	resp = ts.do(t, http.MethodPost, "/auth/refresh", "", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The burned session rejects even the rotated credential.
	resp = ts.do(t, http.MethodPost, "/auth/refresh", "", nil, rotated)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshWithoutCookie(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutEndsSession(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "alice@example.com", "correct-password-123", kogu.RoleResident)
	_, cookie := ts.login(t, "alice@example.com", "correct-password-123")

	resp := ts.do(t, http.MethodPost, "/auth/logout", "", nil, cookie)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/refresh", "", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResendOTPThrottled(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "bob@example.com", "password": "long-enough-pass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/resend-otp", "", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/resend-otp", "", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	body := decodeBody[errorBody](t, resp)
	assert.Greater(t, body.RetryAfter, int64(0))
}

func TestForgotPasswordFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "alice@example.com", "correct-password-123", kogu.RoleResident)

	resp := ts.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	code := ts.lastOTP(t)
	resp = ts.do(t, http.MethodPost, "/auth/forgot-password/accept", "", map[string]string{
		"email": "alice@example.com", "otp": code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	grant := decodeBody[map[string]string](t, resp)["reset_token"]
	require.NotEmpty(t, grant)

	resp = ts.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"reset_token": grant, "new_password": "brand-new-pass-456",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "correct-password-123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ts.login(t, "alice@example.com", "brand-new-pass-456")
}

func TestForgotPasswordUnknownEmailIsOpaque(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	// The throwaway mail keeps the response shape uniform.
	assert.NotEmpty(t, ts.mailbox.Messages())
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "alice@example.com", "correct-password-123", kogu.RoleResident)
	token, cookie := ts.login(t, "alice@example.com", "correct-password-123")

	resp := ts.do(t, http.MethodPost, "/users/me/password", token, map[string]string{
		"old_password": "wrong", "new_password": "brand-new-pass-456",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/users/me/password", token, map[string]string{
		"old_password": "correct-password-123", "new_password": "brand-new-pass-456",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/refresh", "", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGuardRejectsAnonymousAndGarbage(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoleEnforcement(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "manager@example.com", "correct-password-123", kogu.RoleManager)
	ts.seedAccount(t, "alice@example.com", "correct-password-123", kogu.RoleResident)

	managerToken, _ := ts.login(t, "manager@example.com", "correct-password-123")
	residentToken, _ := ts.login(t, "alice@example.com", "correct-password-123")

	apartment := map[string]any{"unit": "A-1203", "floor": 12, "area_m2": 76.5}

	resp := ts.do(t, http.MethodPost, "/apartments", residentToken, apartment)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/apartments", managerToken, apartment)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Feedback creation is resident-only.
	feedback := map[string]string{"title": "Noise", "body": "Unit above is loud"}
	resp = ts.do(t, http.MethodPost, "/feedback", managerToken, feedback)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/feedback", residentToken, feedback)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestInvoiceVisibility(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "manager@example.com", "correct-password-123", kogu.RoleManager)
	ts.seedAccount(t, "books@example.com", "correct-password-123", kogu.RoleAccountant)
	alice := ts.seedAccount(t, "alice@example.com", "correct-password-123", kogu.RoleResident)
	ts.seedAccount(t, "bob@example.com", "correct-password-123", kogu.RoleResident)

	managerToken, _ := ts.login(t, "manager@example.com", "correct-password-123")
	accountantToken, _ := ts.login(t, "books@example.com", "correct-password-123")
	aliceToken, _ := ts.login(t, "alice@example.com", "correct-password-123")
	bobToken, _ := ts.login(t, "bob@example.com", "correct-password-123")

	resp := ts.do(t, http.MethodPost, "/apartments", managerToken, map[string]any{"unit": "A-1203"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	apartment := decodeBody[sqlite.Apartment](t, resp)

	resp = ts.do(t, http.MethodPut, fmt.Sprintf("/apartments/%s/resident", apartment.ID), managerToken,
		map[string]string{"resident_id": alice.UserID})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	invoice := map[string]any{
		"apartment_id": apartment.ID,
		"period":       "2026-08",
		"due_at":       time.Now().Add(14 * 24 * time.Hour).Format(time.RFC3339),
		"items": []map[string]any{
			{"label": "Service fee", "amount_cents": 530000},
		},
	}

	// Only the accountant can issue invoices.
	resp = ts.do(t, http.MethodPost, "/invoices", managerToken, invoice)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/invoices", accountantToken, invoice)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[sqlite.Invoice](t, resp)
	assert.Equal(t, alice.UserID, created.ResidentID, "invoice lands on the assigned resident")

	// Alice sees her invoice, Bob does not.
	resp = ts.do(t, http.MethodGet, "/invoices", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]sqlite.Invoice](t, resp), 1)

	resp = ts.do(t, http.MethodGet, "/invoices", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]sqlite.Invoice](t, resp))

	resp = ts.do(t, http.MethodGet, "/invoices/"+created.ID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "other residents' invoices read as missing")

	// Settling the invoice.
	resp = ts.do(t, http.MethodPost, "/invoices/"+created.ID+"/pay", accountantToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decodeBody[sqlite.Invoice](t, resp)
	assert.Equal(t, sqlite.InvoiceStatusPaid, paid.Status)

	resp = ts.do(t, http.MethodPost, "/invoices/"+created.ID+"/pay", accountantToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestNotificationFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, "manager@example.com", "correct-password-123", kogu.RoleManager)
	ts.seedAccount(t, "alice@example.com", "correct-password-123", kogu.RoleResident)

	managerToken, _ := ts.login(t, "manager@example.com", "correct-password-123")
	aliceToken, _ := ts.login(t, "alice@example.com", "correct-password-123")

	resp := ts.do(t, http.MethodPost, "/notifications", aliceToken, map[string]string{"title": "nope"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/notifications", managerToken, map[string]string{
		"title": "Water outage", "body": "Saturday morning maintenance",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[sqlite.Notification](t, resp)

	resp = ts.do(t, http.MethodGet, "/notifications", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[[]sqlite.Notification](t, resp)
	require.Len(t, list, 1)
	assert.False(t, list[0].Read)

	resp = ts.do(t, http.MethodPost, "/notifications/"+created.ID+"/read", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/notifications", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list = decodeBody[[]sqlite.Notification](t, resp)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
