package internaldefs

import (
	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

// CounterDef maps one engine counter to its exported name.
type CounterDef struct {
	ID   kogu.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to its exported name.
type HistogramDef struct {
	ID   kogu.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: kogu.MetricLoginSuccess, Name: "kogu_login_success_total", Help: "Successful login attempts."},
	{ID: kogu.MetricLoginFailure, Name: "kogu_login_failure_total", Help: "Failed login attempts."},
	{ID: kogu.MetricLoginRateLimited, Name: "kogu_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: kogu.MetricRefreshSuccess, Name: "kogu_refresh_success_total", Help: "Successful refresh operations."},
	{ID: kogu.MetricRefreshFailure, Name: "kogu_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: kogu.MetricRefreshReuseDetected, Name: "kogu_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: kogu.MetricRefreshRateLimited, Name: "kogu_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: kogu.MetricSessionCreated, Name: "kogu_session_created_total", Help: "Created sessions."},
	{ID: kogu.MetricSessionInvalidated, Name: "kogu_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: kogu.MetricLogout, Name: "kogu_logout_total", Help: "Single-session logout operations."},
	{ID: kogu.MetricLogoutAll, Name: "kogu_logout_all_total", Help: "Logout-all operations."},
	{ID: kogu.MetricRegistrationSuccess, Name: "kogu_registration_success_total", Help: "Successful registrations."},
	{ID: kogu.MetricRegistrationDuplicate, Name: "kogu_registration_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: kogu.MetricRegistrationRateLimited, Name: "kogu_registration_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: kogu.MetricOTPIssued, Name: "kogu_otp_issued_total", Help: "Issued OTP challenges."},
	{ID: kogu.MetricOTPConfirmSuccess, Name: "kogu_otp_confirm_success_total", Help: "Successful OTP confirmations."},
	{ID: kogu.MetricOTPConfirmFailure, Name: "kogu_otp_confirm_failure_total", Help: "Failed OTP confirmations."},
	{ID: kogu.MetricOTPAttemptsExceeded, Name: "kogu_otp_attempts_exceeded_total", Help: "OTP challenges invalidated due to attempt cap."},
	{ID: kogu.MetricOTPResendThrottled, Name: "kogu_otp_resend_throttled_total", Help: "Throttled OTP resend attempts."},
	{ID: kogu.MetricResetRequest, Name: "kogu_password_reset_request_total", Help: "Password reset requests."},
	{ID: kogu.MetricResetConfirmSuccess, Name: "kogu_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: kogu.MetricResetConfirmFailure, Name: "kogu_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: kogu.MetricResetAttemptsExceeded, Name: "kogu_password_reset_attempts_exceeded_total", Help: "Reset challenges invalidated due to attempt cap."},
	{ID: kogu.MetricPasswordChangeSuccess, Name: "kogu_password_change_success_total", Help: "Successful password changes."},
	{ID: kogu.MetricPasswordChangeInvalidOld, Name: "kogu_password_change_invalid_old_total", Help: "Password changes with invalid old password."},
	{ID: kogu.MetricPasswordChangeReuseRejected, Name: "kogu_password_change_reuse_rejected_total", Help: "Password changes rejected for reuse."},
	{ID: kogu.MetricAccountDisabled, Name: "kogu_account_disabled_total", Help: "Account disable operations."},
	{ID: kogu.MetricAccountLocked, Name: "kogu_account_locked_total", Help: "Account lock operations."},
	{ID: kogu.MetricAccountDeleted, Name: "kogu_account_deleted_total", Help: "Account delete operations."},
	{ID: kogu.MetricRateLimitHit, Name: "kogu_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

var HistogramDefs = []HistogramDef{
	{ID: kogu.MetricValidateLatency, Name: "kogu_validate_latency_seconds", Help: "Validate latency histogram."},
}

var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
