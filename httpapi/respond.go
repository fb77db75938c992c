package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

type errorBody struct {
	Message    string `json:"message"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Message: message})
}

// writeEngineError maps engine and store sentinels onto HTTP statuses. Rate
// limited errors carry the remaining cooldown both as a Retry-After header
// and a retry_after body field.
func writeEngineError(w http.ResponseWriter, err error) {
	if wait, ok := kogu.RetryAfter(err); ok {
		seconds := int64(wait.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Message:    "too many requests",
			RetryAfter: seconds,
		})
		return
	}

	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, kogu.ErrInvalidCredentials),
		errors.Is(err, kogu.ErrUnauthorized),
		errors.Is(err, kogu.ErrTokenInvalid),
		errors.Is(err, kogu.ErrRefreshInvalid),
		errors.Is(err, kogu.ErrRefreshReuse),
		errors.Is(err, kogu.ErrSessionNotFound):
		status, message = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, kogu.ErrAccountUnverified):
		status, message = http.StatusForbidden, "account not verified"
	case errors.Is(err, kogu.ErrAccountDisabled),
		errors.Is(err, kogu.ErrAccountLocked),
		errors.Is(err, kogu.ErrAccountDeleted):
		status, message = http.StatusForbidden, "account unavailable"
	case errors.Is(err, kogu.ErrEmailTaken):
		status, message = http.StatusConflict, "email already registered"
	case errors.Is(err, sqlite.ErrUnitTaken):
		status, message = http.StatusConflict, "unit already registered"
	case errors.Is(err, sqlite.ErrInvoiceAlreadyPaid):
		status, message = http.StatusConflict, "invoice already paid"
	case errors.Is(err, sqlite.ErrFeedbackTransition):
		status, message = http.StatusConflict, "invalid status transition"
	case errors.Is(err, kogu.ErrPasswordPolicy):
		status, message = http.StatusBadRequest, "password does not meet the policy"
	case errors.Is(err, kogu.ErrPasswordReuse):
		status, message = http.StatusBadRequest, "new password must differ from the old one"
	case errors.Is(err, kogu.ErrOTPInvalid):
		status, message = http.StatusBadRequest, "invalid or expired code"
	case errors.Is(err, kogu.ErrOTPAttemptsExceeded):
		status, message = http.StatusBadRequest, "too many wrong codes; request a new one"
	case errors.Is(err, kogu.ErrResetGrantInvalid):
		status, message = http.StatusBadRequest, "invalid or expired reset token"
	case errors.Is(err, kogu.ErrRegistrationInvalid),
		errors.Is(err, kogu.ErrRoleInvalid):
		status, message = http.StatusBadRequest, "invalid registration"
	case errors.Is(err, kogu.ErrRegistrationDisabled),
		errors.Is(err, kogu.ErrResetDisabled):
		status, message = http.StatusForbidden, "not available"
	case errors.Is(err, kogu.ErrUserNotFound),
		errors.Is(err, sqlite.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	}
	writeJSON(w, status, errorBody{Message: message})
}
