package kogu

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/internal"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/internal/rate"
)

// Register creates a resident account pending email verification and issues
// the OTP challenge the caller must mail to the registrant. With
// verification disabled the account is created active and the returned
// challenge is empty.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.config.Registration.Enabled {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", ErrRegistrationDisabled, func() map[string]string {
			return map[string]string{"reason": "feature_disabled"}
		})
		return nil, ErrRegistrationDisabled
	}
	if e.passwordHash == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", ErrRegistrationInvalid, func() map[string]string {
			return map[string]string{"reason": "invalid_email"}
		})
		return nil, ErrRegistrationInvalid
	}
	if len(req.Password) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"email": email, "reason": "password_policy"}
		})
		return nil, ErrPasswordPolicy
	}

	role := req.Role
	if role == "" {
		role = e.config.Registration.DefaultRole
	}
	if !role.Valid() {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", ErrRoleInvalid, func() map[string]string {
			return map[string]string{"email": email, "reason": "role_invalid"}
		})
		return nil, ErrRoleInvalid
	}
	// Self-service registration only creates the default role. Staff
	// accounts are seeded or created by a manager.
	if role != e.config.Registration.DefaultRole {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", ErrRoleInvalid, func() map[string]string {
			return map[string]string{"email": email, "reason": "role_not_allowed"}
		})
		return nil, ErrRoleInvalid
	}

	if wait, err := e.rateLimiter.CheckCreation(ctx, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRegistrationRateLimited)
			e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", ErrRegistrationRateLimited, func() map[string]string {
				return map[string]string{"email": email}
			})
			e.emitRateLimit(ctx, "registration", func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, &RetryAfterError{Err: ErrRegistrationRateLimited, RetryAfter: wait}
		}
		return nil, err
	}

	initialStatus := AccountActive
	if e.config.Verification.Enabled {
		initialStatus = AccountPendingVerification
	}

	passwordHash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"email": email, "reason": "hash_failed"}
		})
		return nil, ErrPasswordPolicy
	}

	created, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Email:          email,
		PasswordHash:   passwordHash,
		FullName:       strings.TrimSpace(req.FullName),
		Phone:          strings.TrimSpace(req.Phone),
		Unit:           strings.TrimSpace(req.Unit),
		Role:           role,
		Status:         initialStatus,
		AccountVersion: 1,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateEmail) {
			e.metricInc(MetricRegistrationDuplicate)
			e.emitAudit(ctx, auditEventRegistrationDuplicate, false, "", "", ErrEmailTaken, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrEmailTaken
		}
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"email": email, "reason": "provider_create_failed"}
		})
		return nil, err
	}

	result := &RegisterResult{UserID: created.UserID}

	if e.config.Verification.Enabled {
		challenge, err := e.issueVerificationChallenge(ctx, created.UserID, email)
		if err != nil {
			// Account exists but the code was not issued; the registrant can
			// request a resend.
			e.logger.Warn("verification challenge issue failed", zap.String("user_id", created.UserID))
			return nil, err
		}
		result.Challenge = challenge
	}

	req.Password = ""
	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistrationSuccess, true, created.UserID, "", nil, func() map[string]string {
		return map[string]string{"email": email, "role": string(role)}
	})

	return result, nil
}

// ConfirmRegistration consumes the outstanding verification OTP for email.
// A correct code marks the address verified and activates the account.
func (e *Engine) ConfirmRegistration(ctx context.Context, email, code string) error {
	if !e.config.Verification.Enabled {
		return ErrOTPInvalid
	}

	email = normalizeEmail(email)
	codeHash := internal.HashBytes([]byte(code))

	record, err := e.otpStore.Consume(ctx, otpPurposeVerify, email, codeHash, e.config.Verification.MaxAttempts)
	if err != nil {
		mapped := mapOTPError(err)
		switch {
		case errors.Is(mapped, ErrOTPAttemptsExceeded):
			e.metricInc(MetricOTPAttemptsExceeded)
		case errors.Is(mapped, ErrOTPInvalid):
			e.metricInc(MetricOTPConfirmFailure)
		}
		e.emitAudit(ctx, auditEventOTPConfirm, false, "", "", mapped, func() map[string]string {
			return map[string]string{"email": email, "purpose": otpPurposeVerify}
		})
		return mapped
	}

	if err := e.userProvider.MarkEmailVerified(ctx, record.UserID); err != nil {
		e.emitAudit(ctx, auditEventOTPConfirm, false, record.UserID, "", err, func() map[string]string {
			return map[string]string{"email": email, "reason": "mark_verified_failed"}
		})
		return err
	}
	if _, err := e.userProvider.UpdateAccountStatus(ctx, record.UserID, AccountActive); err != nil {
		e.emitAudit(ctx, auditEventOTPConfirm, false, record.UserID, "", err, func() map[string]string {
			return map[string]string{"email": email, "reason": "activate_failed"}
		})
		return err
	}

	e.metricInc(MetricOTPConfirmSuccess)
	e.emitAudit(ctx, auditEventOTPConfirm, true, record.UserID, "", nil, func() map[string]string {
		return map[string]string{"email": email, "purpose": otpPurposeVerify}
	})

	return nil
}

// ResendVerificationOTP reissues the verification code, replacing any
// outstanding one. Unknown and already-verified emails receive a throwaway
// challenge so the response does not reveal account existence; mailing the
// throwaway code is harmless.
func (e *Engine) ResendVerificationOTP(ctx context.Context, email string) (OTPChallenge, error) {
	if !e.config.Verification.Enabled {
		return OTPChallenge{}, ErrOTPInvalid
	}

	email = normalizeEmail(email)

	if wait, err := e.rateLimiter.CheckResend(ctx, otpPurposeVerify, email, e.config.Verification.ResendCooldown); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricOTPResendThrottled)
			e.emitRateLimit(ctx, "otp_resend", func() map[string]string {
				return map[string]string{"email": email}
			})
			return OTPChallenge{}, &RetryAfterError{Err: ErrOTPRateLimited, RetryAfter: wait}
		}
		return OTPChallenge{}, err
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil || user.Status != AccountPendingVerification {
		code, genErr := internal.NewOTP(e.config.Verification.Digits)
		if genErr != nil {
			return OTPChallenge{}, genErr
		}
		e.emitAudit(ctx, auditEventOTPResend, false, "", "", nil, func() map[string]string {
			return map[string]string{"email": email, "reason": "no_pending_account"}
		})
		return OTPChallenge{Email: email, Code: code}, nil
	}

	challenge, err := e.issueVerificationChallenge(ctx, user.UserID, email)
	if err != nil {
		return OTPChallenge{}, err
	}

	e.emitAudit(ctx, auditEventOTPResend, true, user.UserID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return challenge, nil
}

func (e *Engine) issueVerificationChallenge(ctx context.Context, userID, email string) (OTPChallenge, error) {
	code, err := internal.NewOTP(e.config.Verification.Digits)
	if err != nil {
		return OTPChallenge{}, err
	}

	record := &otpRecord{
		UserID:    userID,
		CodeHash:  internal.HashBytes([]byte(code)),
		ExpiresAt: time.Now().Add(e.config.Verification.TTL).Unix(),
	}
	if err := e.otpStore.Save(ctx, otpPurposeVerify, email, record, e.config.Verification.TTL); err != nil {
		return OTPChallenge{}, ErrOTPUnavailable
	}

	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventOTPIssued, true, userID, "", nil, func() map[string]string {
		return map[string]string{"email": email, "purpose": otpPurposeVerify}
	})

	return OTPChallenge{Email: email, Code: code}, nil
}

func mapOTPError(err error) error {
	switch {
	case errors.Is(err, errOTPAttemptsExceeded):
		return ErrOTPAttemptsExceeded
	case errors.Is(err, errOTPMismatch), errors.Is(err, errOTPNotFound), isRedisNil(err):
		return ErrOTPInvalid
	default:
		return ErrOTPUnavailable
	}
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}
