package kogu

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginRateLimited       = "login_rate_limited"
	auditEventRefreshSuccess         = "refresh_success"
	auditEventRefreshInvalid         = "refresh_invalid"
	auditEventRefreshRateLimited     = "refresh_rate_limited"
	auditEventRefreshReuseDetected   = "refresh_reuse_detected"
	auditEventRegistrationSuccess    = "registration_success"
	auditEventRegistrationFailure    = "registration_failure"
	auditEventRegistrationDuplicate  = "registration_duplicate"
	auditEventOTPIssued              = "otp_issued"
	auditEventOTPConfirm             = "otp_confirm"
	auditEventOTPResend              = "otp_resend"
	auditEventPasswordResetRequest   = "password_reset_request"
	auditEventPasswordResetConfirm   = "password_reset_confirm"
	auditEventPasswordResetComplete  = "password_reset_complete"
	auditEventPasswordChangeSuccess  = "password_change_success"
	auditEventPasswordChangeFailure  = "password_change_failure"
	auditEventAccountStatusChange    = "account_status_change"
	auditEventLogoutSession          = "logout_session"
	auditEventLogoutAll              = "logout_all"
	auditEventRateLimitTriggered     = "rate_limit_triggered"
)

type auditErrorCode string

const (
	auditErrUnauthorized        auditErrorCode = "unauthorized"
	auditErrInvalidCredentials  auditErrorCode = "invalid_credentials"
	auditErrRateLimited         auditErrorCode = "rate_limited"
	auditErrRefreshReuse        auditErrorCode = "refresh_reuse"
	auditErrInvalidToken        auditErrorCode = "invalid_token"
	auditErrSessionNotFound     auditErrorCode = "session_not_found"
	auditErrUserNotFound        auditErrorCode = "user_not_found"
	auditErrAccountDisabled     auditErrorCode = "account_disabled"
	auditErrAccountLocked       auditErrorCode = "account_locked"
	auditErrAccountDeleted      auditErrorCode = "account_deleted"
	auditErrAccountUnverified   auditErrorCode = "account_unverified"
	auditErrPasswordPolicy      auditErrorCode = "password_policy"
	auditErrPasswordReuse       auditErrorCode = "password_reuse"
	auditErrOTPInvalid          auditErrorCode = "otp_invalid"
	auditErrAttemptsExceeded    auditErrorCode = "attempts_exceeded"
	auditErrResetGrantInvalid   auditErrorCode = "reset_grant_invalid"
	auditErrDuplicate           auditErrorCode = "duplicate"
	auditErrSessionInvalidation auditErrorCode = "session_invalidation_failed"
	auditErrUnavailable         auditErrorCode = "backend_unavailable"
	auditErrInternal            auditErrorCode = "internal_error"
)

func auditCodeForError(err error) auditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited),
		errors.Is(err, ErrOTPRateLimited),
		errors.Is(err, ErrRegistrationRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshInvalid), errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDeleted):
		return auditErrAccountDeleted
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrOTPInvalid):
		return auditErrOTPInvalid
	case errors.Is(err, ErrOTPAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrResetGrantInvalid):
		return auditErrResetGrantInvalid
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrProviderDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrOTPUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

// emitAudit builds and dispatches one audit event. The metadata closure is
// only invoked when a dispatcher is attached, keeping the disabled path
// allocation-free.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditCodeForError(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, metadataBuilder func() map[string]string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", nil, func() map[string]string {
		base := map[string]string{"scope": scope}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}
