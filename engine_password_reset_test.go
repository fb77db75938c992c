package kogu

import (
	"context"
	"errors"
	"testing"
)

func TestPasswordResetFlow(t *testing.T) {
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

	challenge, err := engine.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if challenge.Code == "" {
		t.Fatal("expected challenge code")
	}

	grant, err := engine.ConfirmPasswordResetOTP(ctx, "alice@example.com", challenge.Code)
	if err != nil {
		t.Fatalf("ConfirmPasswordResetOTP failed: %v", err)
	}
	if grant == "" {
		t.Fatal("expected reset grant token")
	}

	if err := engine.CompletePasswordReset(ctx, grant, "new-password-456"); err != nil {
		t.Fatalf("CompletePasswordReset failed: %v", err)
	}

	// Reset kills every session.
	if _, err := engine.Validate(ctx, result.AccessToken, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after reset, got %v", err)
	}

	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "new-password-456"); err != nil {
		t.Fatalf("Login with reset password failed: %v", err)
	}
}

func TestPasswordResetGrantIsSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	challenge, err := engine.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	grant, err := engine.ConfirmPasswordResetOTP(ctx, "alice@example.com", challenge.Code)
	if err != nil {
		t.Fatalf("ConfirmPasswordResetOTP failed: %v", err)
	}

	if err := engine.CompletePasswordReset(ctx, grant, "new-password-456"); err != nil {
		t.Fatalf("first CompletePasswordReset failed: %v", err)
	}
	if err := engine.CompletePasswordReset(ctx, grant, "another-password-789"); !errors.Is(err, ErrResetGrantInvalid) {
		t.Fatalf("expected ErrResetGrantInvalid on reuse, got %v", err)
	}
}

func TestPasswordResetWrongOTP(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	if _, err := engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if _, err := engine.ConfirmPasswordResetOTP(ctx, "alice@example.com", "000000"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
}

func TestPasswordResetUnknownEmailIsOpaque(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())

	challenge, err := engine.RequestPasswordReset(ctx, "ghost@example.com")
	if err != nil {
		t.Fatalf("expected opaque success for unknown email, got %v", err)
	}
	if challenge.Code == "" {
		t.Fatal("expected throwaway challenge code")
	}

	// The throwaway code never confirms.
	if _, err := engine.ConfirmPasswordResetOTP(ctx, "ghost@example.com", challenge.Code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
}

func TestPasswordResetGarbageGrant(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())

	if err := engine.CompletePasswordReset(context.Background(), "garbage", "new-password-456"); !errors.Is(err, ErrResetGrantInvalid) {
		t.Fatalf("expected ErrResetGrantInvalid, got %v", err)
	}
}

func TestPasswordResetDisabled(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	up := newMockUserProvider()
	cfg := testConfig()
	cfg.PasswordReset.Enabled = false
	engine := newTestEngine(t, rdb, up, cfg)

	if _, err := engine.RequestPasswordReset(context.Background(), "alice@example.com"); !errors.Is(err, ErrResetDisabled) {
		t.Fatalf("expected ErrResetDisabled, got %v", err)
	}
}

func TestPasswordResetPolicyOnComplete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, testConfig())
	addActiveUser(t, engine, up, "alice@example.com", "correct-password-123")

	challenge, err := engine.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	grant, err := engine.ConfirmPasswordResetOTP(ctx, "alice@example.com", challenge.Code)
	if err != nil {
		t.Fatalf("ConfirmPasswordResetOTP failed: %v", err)
	}

	if err := engine.CompletePasswordReset(ctx, grant, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}
