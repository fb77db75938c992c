package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Feedback statuses. Transitions only move forward.
const (
	FeedbackStatusOpen       = "open"
	FeedbackStatusInProgress = "in_progress"
	FeedbackStatusResolved   = "resolved"
)

// ErrFeedbackTransition is returned for a backwards status transition.
var ErrFeedbackTransition = errors.New("sqlite: invalid feedback status transition")

// Feedback is one resident complaint or suggestion.
type Feedback struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category,omitempty"`
	Status    string    `json:"status"`
	Response  string    `json:"response,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var feedbackStatusRank = map[string]int{
	FeedbackStatusOpen:       0,
	FeedbackStatusInProgress: 1,
	FeedbackStatusResolved:   2,
}

// CreateFeedback files a new feedback entry in the open status.
func (s *Store) CreateFeedback(ctx context.Context, authorID, title, body, category string) (Feedback, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" || body == "" {
		return Feedback{}, fmt.Errorf("sqlite: feedback title and body are required")
	}

	now := time.Now().UTC()
	feedback := Feedback{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Title:     title,
		Body:      body,
		Category:  strings.TrimSpace(category),
		Status:    FeedbackStatusOpen,
		CreatedAt: now.Truncate(time.Millisecond),
		UpdatedAt: now.Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO feedback (id, author_id, title, body, category, status, response, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		feedback.ID, feedback.AuthorID, feedback.Title, feedback.Body,
		feedback.Category, feedback.Status, toMillis(now), toMillis(now),
	)
	if err != nil {
		return Feedback{}, fmt.Errorf("sqlite: create feedback: %w", err)
	}
	return feedback, nil
}

// GetFeedback loads one entry by ID.
func (s *Store) GetFeedback(ctx context.Context, id string) (Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, author_id, title, body, category, status, response, created_at, updated_at
FROM feedback WHERE id = ?`, id)
	return scanFeedback(row)
}

// ListFeedback returns entries newest first. An empty authorID lists all.
func (s *Store) ListFeedback(ctx context.Context, authorID string) ([]Feedback, error) {
	query := `
SELECT id, author_id, title, body, category, status, response, created_at, updated_at
FROM feedback`
	var args []any
	if authorID != "" {
		query += " WHERE author_id = ?"
		args = append(args, authorID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list feedback: %w", err)
	}
	defer rows.Close()

	var entries []Feedback
	for rows.Next() {
		entry, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateFeedbackStatus moves an entry forward through
// open, in_progress, resolved and optionally records a response note.
func (s *Store) UpdateFeedbackStatus(ctx context.Context, id, status, response string) (Feedback, error) {
	newRank, ok := feedbackStatusRank[status]
	if !ok {
		return Feedback{}, fmt.Errorf("sqlite: unknown feedback status %q", status)
	}

	current, err := s.GetFeedback(ctx, id)
	if err != nil {
		return Feedback{}, err
	}
	if newRank < feedbackStatusRank[current.Status] {
		return Feedback{}, ErrFeedbackTransition
	}

	if strings.TrimSpace(response) == "" {
		response = current.Response
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		"UPDATE feedback SET status = ?, response = ?, updated_at = ? WHERE id = ?",
		status, response, toMillis(now), id)
	if err != nil {
		return Feedback{}, fmt.Errorf("sqlite: update feedback status: %w", err)
	}

	current.Status = status
	current.Response = response
	current.UpdatedAt = now.Truncate(time.Millisecond)
	return current, nil
}

func scanFeedback(row rowScanner) (Feedback, error) {
	var feedback Feedback
	var createdAt, updatedAt int64
	err := row.Scan(&feedback.ID, &feedback.AuthorID, &feedback.Title,
		&feedback.Body, &feedback.Category, &feedback.Status, &feedback.Response,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Feedback{}, ErrNotFound
	}
	if err != nil {
		return Feedback{}, fmt.Errorf("sqlite: scan feedback: %w", err)
	}
	feedback.CreatedAt = fromMillis(createdAt)
	feedback.UpdatedAt = fromMillis(updatedAt)
	return feedback, nil
}
