package kogu

import (
	"context"

	"go.uber.org/zap"
)

// SetAccountStatus transitions an account's lifecycle state. Moving out of
// [AccountActive] revokes every session of the user, so outstanding access
// tokens die at their next strict validation or refresh.
func (e *Engine) SetAccountStatus(ctx context.Context, userID string, status AccountStatus) error {
	if e == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}

	updated, err := e.userProvider.UpdateAccountStatus(ctx, userID, status)
	if err != nil {
		e.emitAudit(ctx, auditEventAccountStatusChange, false, userID, "", err, func() map[string]string {
			return map[string]string{"target_status": status.String()}
		})
		return err
	}

	switch status {
	case AccountDisabled:
		e.metricInc(MetricAccountDisabled)
	case AccountLocked:
		e.metricInc(MetricAccountLocked)
	case AccountDeleted:
		e.metricInc(MetricAccountDeleted)
	}

	if status != AccountActive {
		if err := e.LogoutAll(ctx, updated.UserID); err != nil {
			e.logger.Error("session invalidation failed after status change", zap.String("user_id", userID))
			e.emitAudit(ctx, auditEventAccountStatusChange, false, userID, "", ErrSessionInvalidationFailed, func() map[string]string {
				return map[string]string{"target_status": status.String()}
			})
			return ErrSessionInvalidationFailed
		}
	}

	e.emitAudit(ctx, auditEventAccountStatusChange, true, userID, "", nil, func() map[string]string {
		return map[string]string{"target_status": status.String()}
	})

	return nil
}
