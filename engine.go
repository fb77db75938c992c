package kogu

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/internal"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/internal/rate"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/jwt"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/password"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/refresh"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/session"
)

// Engine is the authentication core. Build one with [Builder] and treat it
// as immutable; all methods are safe for concurrent use.
type Engine struct {
	config       Config
	logger       *zap.Logger
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	otpStore     *otpStore
	resetGrants  *resetGrantStore
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	userProvider UserProvider
}

// Close drains and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies credentials and opens a session. The returned result
// carries the access token, the opaque refresh token, and the profile.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if wait, err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{"email": email}
			})
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, &RetryAfterError{Err: ErrLoginRateLimited, RetryAfter: wait}
		}
		return nil, err
	}

	if pass == "" {
		return nil, e.failLogin(ctx, email, ip, "", "empty_password")
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, e.failLogin(ctx, email, ip, "", "user_not_found")
	}

	ok, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, email, ip, user.UserID, "password_mismatch")
	}

	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", statusErr, func() map[string]string {
			return map[string]string{"email": email, "reason": "account_status"}
		})
		return nil, statusErr
	}
	if e.shouldRequireVerified() && user.Status == AccountPendingVerification {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", ErrAccountUnverified, func() map[string]string {
			return map[string]string{"email": email, "reason": "pending_verification"}
		})
		return nil, ErrAccountUnverified
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.passwordHash.Hash(pass); err == nil {
				// Rehash update is best-effort and must not block login.
				if err := e.userProvider.UpdatePasswordHash(ctx, user.UserID, upgradedHash); err != nil {
					e.logger.Warn("password hash upgrade failed", zap.String("user_id", user.UserID))
				}
			}
		}
	}
	pass = ""

	result, sessionID, err := e.openSession(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, sessionID, err, func() map[string]string {
			return map[string]string{"email": email, "reason": "session_open_failed"}
		})
		return nil, err
	}

	// Limiter reset is best-effort; a stale counter only shortens the budget.
	if err := e.rateLimiter.ResetLogin(ctx, email, ip); err != nil {
		e.logger.Warn("login limiter reset failed", zap.String("email", email))
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, sessionID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return result, nil
}

func (e *Engine) failLogin(ctx context.Context, email, ip, userID, reason string) error {
	if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.Warn("login limiter increment failed", zap.String("email", email))
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"email": email, "reason": reason}
	})
	return ErrInvalidCredentials
}

// openSession creates a new session for an already-authenticated user and
// issues the token pair.
func (e *Engine) openSession(ctx context.Context, user UserRecord) (*LoginResult, string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, "", err
	}
	sessionID := sid.String()

	secret, err := refresh.NewSecret()
	if err != nil {
		return nil, sessionID, err
	}

	now := time.Now()
	lifetime := e.sessionLifetime()
	accountVersion := user.AccountVersion
	if accountVersion == 0 {
		accountVersion = 1
	}

	sess := &session.Session{
		SessionID:      sessionID,
		UserID:         user.UserID,
		Role:           string(user.Role),
		Status:         uint8(user.Status),
		AccountVersion: accountVersion,
		RefreshHash:    refresh.Hash(secret),
		CreatedAt:      now.Unix(),
		ExpiresAt:      now.Add(lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, lifetime); err != nil {
		return nil, sessionID, err
	}

	access, err := e.issueAccessToken(sess)
	if err != nil {
		return nil, sessionID, err
	}

	refreshToken, err := refresh.Encode(sessionID, secret)
	if err != nil {
		return nil, sessionID, err
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		User:         user.Profile(),
	}, sessionID, nil
}

// Refresh rotates the refresh credential and issues a fresh access token.
// Presenting a rotated-out token invalidates the whole session and returns
// [ErrRefreshReuse].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil || e.sessionStore == nil {
		return "", "", ErrEngineNotReady
	}

	sessionID, providedSecret, err := refresh.Decode(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "decode_failed"}
		})
		return "", "", ErrRefreshInvalid
	}

	if wait, err := e.rateLimiter.CheckRefresh(ctx, sessionID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", sessionID, ErrRefreshRateLimited, nil)
			e.emitRateLimit(ctx, "refresh", func() map[string]string {
				return map[string]string{"session_id": sessionID}
			})
			return "", "", &RetryAfterError{Err: ErrRefreshRateLimited, RetryAfter: wait}
		}
		return "", "", err
	}

	nextSecret, err := refresh.NewSecret()
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	sess, err := e.sessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		refresh.Hash(providedSecret),
		refresh.Hash(nextSecret),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			// Rotated-out token presented again: burn the session.
			if delErr := e.sessionStore.Delete(ctx, sessionID); delErr != nil {
				e.logger.Warn("session delete after reuse failed", zap.String("session_id", sessionID))
			}
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricSessionInvalidated)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", sessionID, ErrRefreshReuse, nil)
			return "", "", ErrRefreshReuse
		case errors.Is(err, redis.Nil):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, ErrSessionNotFound, func() map[string]string {
				return map[string]string{"reason": "session_not_found"}
			})
			return "", "", ErrSessionNotFound
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, err, func() map[string]string {
				return map[string]string{"reason": "rotate_failed"}
			})
			return "", "", err
		}
	}

	if statusErr := accountStatusToError(AccountStatus(sess.Status)); statusErr != nil {
		_ = e.sessionStore.Delete(ctx, sess.SessionID)
		e.metricInc(MetricSessionInvalidated)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sess.SessionID, statusErr, func() map[string]string {
			return map[string]string{"reason": "account_status"}
		})
		return "", "", statusErr
	}
	if e.shouldRequireVerified() && AccountStatus(sess.Status) == AccountPendingVerification {
		_ = e.sessionStore.Delete(ctx, sess.SessionID)
		e.metricInc(MetricSessionInvalidated)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sess.SessionID, ErrAccountUnverified, func() map[string]string {
			return map[string]string{"reason": "pending_verification"}
		})
		return "", "", ErrAccountUnverified
	}

	access, err := e.issueAccessToken(sess)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	nextToken, err := refresh.Encode(sess.SessionID, nextSecret)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, sess.UserID, sess.SessionID, nil, nil)

	return access, nextToken, nil
}

// ValidateAccess validates an access token using the configured mode.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	return e.Validate(ctx, tokenStr, e.config.ValidationMode)
}

// Validate checks an access token. In [ModeJWTOnly] the signature and expiry
// decide alone. In [ModeStrict] the backing session must still exist in
// Redis, fail-closed when Redis is unreachable.
func (e *Engine) Validate(ctx context.Context, tokenStr string, mode ValidationMode) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if mode != ModeJWTOnly && mode != ModeStrict {
		return nil, ErrInvalidValidationMode
	}

	if mode == ModeJWTOnly {
		return &AuthResult{
			UserID:    claims.UID,
			Role:      Role(claims.Role),
			SessionID: claims.SID,
		}, nil
	}

	sess, err := e.sessionStore.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrUnauthorized
	}

	if claims.AccountVersion != 0 && sess.AccountVersion != 0 && claims.AccountVersion != sess.AccountVersion {
		_ = e.sessionStore.Delete(ctx, claims.SID)
		return nil, ErrSessionNotFound
	}
	if statusErr := accountStatusToError(AccountStatus(sess.Status)); statusErr != nil {
		_ = e.sessionStore.Delete(ctx, claims.SID)
		return nil, statusErr
	}
	if e.shouldRequireVerified() && AccountStatus(sess.Status) == AccountPendingVerification {
		_ = e.sessionStore.Delete(ctx, claims.SID)
		return nil, ErrAccountUnverified
	}

	return &AuthResult{
		UserID:    sess.UserID,
		Role:      Role(sess.Role),
		SessionID: sess.SessionID,
	}, nil
}

// CurrentUser resolves the profile behind an access token. The token is
// validated with the configured mode first.
func (e *Engine) CurrentUser(ctx context.Context, tokenStr string) (UserProfile, error) {
	res, err := e.ValidateAccess(ctx, tokenStr)
	if err != nil {
		return UserProfile{}, err
	}

	user, err := e.userProvider.GetUserByID(ctx, res.UserID)
	if err != nil {
		return UserProfile{}, ErrUserNotFound
	}
	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		return UserProfile{}, statusErr
	}

	return user.Profile(), nil
}

// Logout deletes one session. Deleting a missing session succeeds.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	err := e.sessionStore.Delete(ctx, sessionID)
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, "", sessionID, err, nil)
	return err
}

// LogoutByAccessToken deletes the session named in the token's sid claim.
// The token may be expired; only its structure and signature are checked.
func (e *Engine) LogoutByAccessToken(ctx context.Context, tokenStr string) error {
	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "invalid_access_token"}
		})
		return ErrTokenInvalid
	}

	return e.Logout(ctx, claims.SID)
}

// LogoutAll deletes every session belonging to a user.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	err := e.sessionStore.DeleteAllForUser(ctx, userID)
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, userID, "", err, nil)
	return err
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every session of the user.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	if userID == "" || oldPassword == "" || len(newPassword) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "invalid_input"}
		})
		return ErrPasswordPolicy
	}

	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrUserNotFound, func() map[string]string {
			return map[string]string{"reason": "user_not_found"}
		})
		return ErrUserNotFound
	}
	if statusErr := accountStatusToError(user.Status); statusErr != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", statusErr, func() map[string]string {
			return map[string]string{"reason": "account_status"}
		})
		return statusErr
	}

	oldOK, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil || !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	samePassword, err := e.passwordHash.Verify(newPassword, user.PasswordHash)
	if err == nil && samePassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "hash_failed"}
		})
		return ErrPasswordPolicy
	}

	if err := e.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": "update_hash_failed"}
		})
		return err
	}

	if err := e.LogoutAll(ctx, userID); err != nil {
		e.logger.Error("session invalidation failed after password change", zap.String("user_id", userID))
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrSessionInvalidationFailed, func() map[string]string {
			return map[string]string{"reason": "session_invalidation_failed"}
		})
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	// Limiter reset is best-effort and must not block the change.
	if err := e.rateLimiter.ResetLogin(ctx, normalizeEmail(user.Email), clientIPFromContext(ctx)); err != nil {
		e.logger.Warn("login limiter reset failed after password change", zap.String("user_id", userID))
	}

	oldPassword = ""
	newPassword = ""
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, "", nil, nil)

	return nil
}

func (e *Engine) issueAccessToken(sess *session.Session) (string, error) {
	return e.jwtManager.CreateAccess(sess.UserID, sess.SessionID, sess.Role, sess.AccountVersion)
}

func isRedisNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (e *Engine) shouldRequireVerified() bool {
	return e.config.Security.RequireVerifiedEmail
}

// sessionLifetime is the absolute session lifetime, capped by the refresh
// TTL when that is shorter.
func (e *Engine) sessionLifetime() time.Duration {
	lifetime := e.config.Session.Lifetime
	if e.config.JWT.RefreshTTL > 0 && e.config.JWT.RefreshTTL < lifetime {
		return e.config.JWT.RefreshTTL
	}
	return lifetime
}
