package kogu

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned when an access token fails validation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a user lookup by ID fails.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginRateLimited is returned when the login attempt budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when a session refreshes too often.
	ErrRefreshRateLimited = errors.New("refresh rate limited")

	// ErrRegistrationDisabled is returned when self-registration is turned off.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrRegistrationInvalid is returned for malformed registration requests.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrRegistrationRateLimited is returned when account creation is throttled.
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrRoleInvalid is returned for roles outside manager/accountant/resident.
	ErrRoleInvalid = errors.New("invalid role")

	// ErrAccountUnverified is returned while the email OTP is outstanding.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountDisabled is returned for administratively disabled accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is returned for locked accounts.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDeleted is returned for soft-deleted accounts.
	ErrAccountDeleted = errors.New("account deleted")

	// ErrOTPInvalid is returned when an OTP does not match or has expired.
	ErrOTPInvalid = errors.New("invalid or expired verification code")
	// ErrOTPAttemptsExceeded is returned when the OTP attempt cap is hit.
	ErrOTPAttemptsExceeded = errors.New("verification attempts exceeded")
	// ErrOTPRateLimited is returned when OTP issuance is throttled.
	ErrOTPRateLimited = errors.New("verification code rate limited")
	// ErrOTPUnavailable is returned when the OTP backend is unreachable.
	ErrOTPUnavailable = errors.New("verification backend unavailable")

	// ErrResetDisabled is returned when password reset is turned off.
	ErrResetDisabled = errors.New("password reset disabled")
	// ErrResetGrantInvalid is returned for unknown, expired, or replayed reset grants.
	ErrResetGrantInvalid = errors.New("invalid or expired reset grant")

	// ErrPasswordPolicy is returned when a password violates local policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must differ from current password")

	// ErrSessionNotFound is returned when a session has expired or was revoked.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInvalidationFailed wraps failures to revoke sessions after
	// credential changes.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrTokenInvalid is returned for structurally invalid access tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRefreshInvalid is returned for undecodable or unknown refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when a rotated-out refresh token is presented
	// again; the whole session is invalidated as a precaution.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrInvalidValidationMode is returned for unknown validation modes.
	ErrInvalidValidationMode = errors.New("invalid validation mode")
	// ErrEngineNotReady is returned when the engine is missing a dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrProviderDuplicateEmail must be returned by UserProvider.CreateUser
	// when the email is already taken.
	ErrProviderDuplicateEmail = errors.New("provider duplicate email")
)

// RetryAfterError decorates a rate-limit sentinel with the remaining
// cooldown so HTTP layers can populate a Retry-After header and the
// retry_after response field.
type RetryAfterError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", e.Err, e.RetryAfter)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

// RetryAfter extracts the cooldown hint from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) && ra.RetryAfter > 0 {
		return ra.RetryAfter, true
	}
	return 0, false
}
