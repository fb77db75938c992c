package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notification is a notice posted by the management board. A notification
// with no recipient is a building-wide broadcast.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
}

// CreateNotification posts a notice. An empty recipientID broadcasts it to
// every resident.
func (s *Store) CreateNotification(ctx context.Context, recipientID, title, body, createdBy string) (Notification, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Notification{}, fmt.Errorf("sqlite: notification title is required")
	}

	now := time.Now().UTC()
	notification := Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Title:       title,
		Body:        strings.TrimSpace(body),
		CreatedBy:   createdBy,
		CreatedAt:   now.Truncate(time.Millisecond),
	}
	var recipient any
	if recipientID != "" {
		recipient = recipientID
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO notifications (id, recipient_id, title, body, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		notification.ID, recipient, notification.Title, notification.Body,
		notification.CreatedBy, toMillis(now),
	)
	if err != nil {
		return Notification{}, fmt.Errorf("sqlite: create notification: %w", err)
	}
	return notification, nil
}

// ListNotificationsForUser returns broadcasts plus the user's direct notices,
// newest first, with the per-user read flag resolved.
func (s *Store) ListNotificationsForUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT n.id, n.recipient_id, n.title, n.body, n.created_by, n.created_at,
       r.read_at IS NOT NULL
FROM notifications n
LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = ?
WHERE n.recipient_id IS NULL OR n.recipient_id = ?
ORDER BY n.created_at DESC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var notification Notification
		var recipient sql.NullString
		var createdAt int64
		if err := rows.Scan(&notification.ID, &recipient, &notification.Title,
			&notification.Body, &notification.CreatedBy, &createdAt, &notification.Read); err != nil {
			return nil, fmt.Errorf("sqlite: scan notification: %w", err)
		}
		notification.RecipientID = recipient.String
		notification.CreatedAt = fromMillis(createdAt)
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead records that the user has seen the notice. Marking an
// already read notice is a no-op.
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM notifications
WHERE id = ? AND (recipient_id IS NULL OR recipient_id = ?)`,
		notificationID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: check notification: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO notification_reads (notification_id, user_id, read_at)
VALUES (?, ?, ?)
ON CONFLICT (notification_id, user_id) DO NOTHING`,
		notificationID, userID, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite: mark notification read: %w", err)
	}
	return nil
}
