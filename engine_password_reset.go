package kogu

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/internal"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/internal/rate"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/refresh"
)

// RequestPasswordReset issues a reset OTP for the email. The call is
// enumeration safe: unknown and ineligible emails take the same uniform
// delay and receive a throwaway challenge, so neither timing nor the
// response reveals whether an account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (OTPChallenge, error) {
	if !e.config.PasswordReset.Enabled {
		return OTPChallenge{}, ErrResetDisabled
	}

	email = normalizeEmail(email)

	if wait, err := e.rateLimiter.CheckResend(ctx, otpPurposeReset, email, e.config.PasswordReset.ResendCooldown); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricOTPResendThrottled)
			e.emitRateLimit(ctx, "reset_request", func() map[string]string {
				return map[string]string{"email": email}
			})
			return OTPChallenge{}, &RetryAfterError{Err: ErrOTPRateLimited, RetryAfter: wait}
		}
		return OTPChallenge{}, err
	}

	start := time.Now()
	defer e.padToEnumerationDelay(start)

	e.metricInc(MetricResetRequest)

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil || accountStatusToError(user.Status) != nil {
		code, genErr := internal.NewOTP(e.config.PasswordReset.Digits)
		if genErr != nil {
			return OTPChallenge{}, genErr
		}
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", nil, func() map[string]string {
			return map[string]string{"email": email, "reason": "no_eligible_account"}
		})
		return OTPChallenge{Email: email, Code: code}, nil
	}

	code, err := internal.NewOTP(e.config.PasswordReset.Digits)
	if err != nil {
		return OTPChallenge{}, err
	}

	record := &otpRecord{
		UserID:    user.UserID,
		CodeHash:  internal.HashBytes([]byte(code)),
		ExpiresAt: time.Now().Add(e.config.PasswordReset.TTL).Unix(),
	}
	if err := e.otpStore.Save(ctx, otpPurposeReset, email, record, e.config.PasswordReset.TTL); err != nil {
		return OTPChallenge{}, ErrOTPUnavailable
	}

	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.UserID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return OTPChallenge{Email: email, Code: code}, nil
}

// ConfirmPasswordResetOTP consumes the reset OTP and mints a single-use
// grant token. The grant is the only credential accepted by
// [Engine.CompletePasswordReset].
func (e *Engine) ConfirmPasswordResetOTP(ctx context.Context, email, code string) (string, error) {
	if !e.config.PasswordReset.Enabled {
		return "", ErrResetDisabled
	}

	email = normalizeEmail(email)
	codeHash := internal.HashBytes([]byte(code))

	record, err := e.otpStore.Consume(ctx, otpPurposeReset, email, codeHash, e.config.PasswordReset.MaxAttempts)
	if err != nil {
		mapped := mapOTPError(err)
		switch {
		case errors.Is(mapped, ErrOTPAttemptsExceeded):
			e.metricInc(MetricResetAttemptsExceeded)
		case errors.Is(mapped, ErrOTPInvalid):
			e.metricInc(MetricResetConfirmFailure)
		}
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", mapped, func() map[string]string {
			return map[string]string{"email": email}
		})
		return "", mapped
	}

	grantID, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	secret, err := refresh.NewSecret()
	if err != nil {
		return "", err
	}

	grant := &resetGrantRecord{
		UserID:     record.UserID,
		SecretHash: refresh.Hash(secret),
		ExpiresAt:  time.Now().Add(e.config.PasswordReset.GrantTTL).Unix(),
	}
	if err := e.resetGrants.Save(ctx, grantID.String(), grant, e.config.PasswordReset.GrantTTL); err != nil {
		return "", ErrOTPUnavailable
	}

	token, err := refresh.Encode(grantID.String(), secret)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, record.UserID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return token, nil
}

// CompletePasswordReset exchanges a grant token for a password change and
// revokes every session of the user. The grant burns on first use whether
// or not the new password passes policy.
func (e *Engine) CompletePasswordReset(ctx context.Context, grantToken, newPassword string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrResetDisabled
	}

	grantID, secret, err := refresh.Decode(grantToken)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, "", "", ErrResetGrantInvalid, func() map[string]string {
			return map[string]string{"reason": "decode_failed"}
		})
		return ErrResetGrantInvalid
	}

	grant, err := e.resetGrants.Consume(ctx, grantID, secret)
	if err != nil {
		mapped := ErrResetGrantInvalid
		if !errors.Is(err, errResetGrantNotFound) && !errors.Is(err, errResetGrantMismatch) {
			mapped = ErrOTPUnavailable
		}
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, "", "", mapped, func() map[string]string {
			return map[string]string{"reason": "grant_consume_failed"}
		})
		return mapped
	}

	if len(newPassword) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, grant.UserID, "", ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}

	user, err := e.userProvider.GetUserByID(ctx, grant.UserID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, grant.UserID, "", ErrUserNotFound, nil)
		return ErrUserNotFound
	}
	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, grant.UserID, "", statusErr, nil)
		return statusErr
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, grant.UserID, "", ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, grant.UserID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, grant.UserID, "", err, func() map[string]string {
			return map[string]string{"reason": "update_hash_failed"}
		})
		return err
	}

	if err := e.LogoutAll(ctx, grant.UserID); err != nil {
		e.logger.Error("session invalidation failed after password reset", zap.String("user_id", grant.UserID))
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, grant.UserID, "", ErrSessionInvalidationFailed, nil)
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	// Limiter reset is best-effort.
	if err := e.rateLimiter.ResetLogin(ctx, normalizeEmail(user.Email), clientIPFromContext(ctx)); err != nil {
		e.logger.Warn("login limiter reset failed after password reset", zap.String("user_id", grant.UserID))
	}

	newPassword = ""
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordResetComplete, true, grant.UserID, "", nil, nil)

	return nil
}

// padToEnumerationDelay sleeps out the remainder of the configured uniform
// delay so eligible and ineligible reset requests take the same time.
func (e *Engine) padToEnumerationDelay(start time.Time) {
	delay := e.config.PasswordReset.EnumerationDelay
	if delay <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed < delay {
		time.Sleep(delay - elapsed)
	}
}
