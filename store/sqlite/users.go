package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

const userColumns = "id, email, password_hash, full_name, phone, unit, role, status, email_verified, account_version"

var _ kogu.UserProvider = (*Store)(nil)

// GetUserByEmail looks an account up by its normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (kogu.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", normalizeEmail(email))
	return scanUser(row)
}

// GetUserByID looks an account up by its ID.
func (s *Store) GetUserByID(ctx context.Context, userID string) (kogu.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", userID)
	return scanUser(row)
}

// CreateUser inserts a new account. A duplicate email yields
// [kogu.ErrProviderDuplicateEmail].
func (s *Store) CreateUser(ctx context.Context, input kogu.CreateUserInput) (kogu.UserRecord, error) {
	record := kogu.UserRecord{
		UserID:         uuid.NewString(),
		Email:          normalizeEmail(input.Email),
		PasswordHash:   input.PasswordHash,
		FullName:       strings.TrimSpace(input.FullName),
		Phone:          strings.TrimSpace(input.Phone),
		Unit:           strings.TrimSpace(input.Unit),
		Role:           input.Role,
		Status:         input.Status,
		AccountVersion: input.AccountVersion,
	}
	if record.AccountVersion == 0 {
		record.AccountVersion = 1
	}

	now := time.Now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, full_name, phone, unit, role, status, email_verified, account_version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UserID, record.Email, record.PasswordHash, record.FullName,
		record.Phone, record.Unit, string(record.Role), int(record.Status),
		boolToInt(record.EmailVerified), record.AccountVersion, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return kogu.UserRecord{}, kogu.ErrProviderDuplicateEmail
		}
		return kogu.UserRecord{}, fmt.Errorf("sqlite: create user: %w", err)
	}
	return record, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		newHash, time.Now().UTC().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: update password hash: %w", err)
	}
	return requireRow(result)
}

// UpdateAccountStatus sets the account status and returns the updated record.
func (s *Store) UpdateAccountStatus(ctx context.Context, userID string, status kogu.AccountStatus) (kogu.UserRecord, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET status = ?, updated_at = ? WHERE id = ?",
		int(status), time.Now().UTC().UnixMilli(), userID)
	if err != nil {
		return kogu.UserRecord{}, fmt.Errorf("sqlite: update account status: %w", err)
	}
	if err := requireRow(result); err != nil {
		return kogu.UserRecord{}, err
	}
	return s.GetUserByID(ctx, userID)
}

// MarkEmailVerified flips the email verification flag.
func (s *Store) MarkEmailVerified(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?",
		time.Now().UTC().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: mark email verified: %w", err)
	}
	return requireRow(result)
}

// ListUsersByRole returns all accounts with the given role, newest first.
func (s *Store) ListUsersByRole(ctx context.Context, role kogu.Role) ([]kogu.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY created_at DESC", string(role))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list users by role: %w", err)
	}
	defer rows.Close()

	var users []kogu.UserRecord
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (kogu.UserRecord, error) {
	var user kogu.UserRecord
	var role string
	var status int
	var verified int
	err := row.Scan(
		&user.UserID, &user.Email, &user.PasswordHash, &user.FullName,
		&user.Phone, &user.Unit, &role, &status, &verified, &user.AccountVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return kogu.UserRecord{}, kogu.ErrUserNotFound
	}
	if err != nil {
		return kogu.UserRecord{}, fmt.Errorf("sqlite: scan user: %w", err)
	}
	user.Role = kogu.Role(role)
	user.Status = kogu.AccountStatus(status)
	user.EmailVerified = verified != 0
	return user, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return kogu.ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
