package kogu

import "context"

// Role is the closed set of account roles in a Kogu deployment.
type Role string

const (
	// RoleManager manages residents, feedback, and notifications.
	RoleManager Role = "manager"
	// RoleAccountant issues and settles invoices.
	RoleAccountant Role = "accountant"
	// RoleResident is the default role for self-registered accounts.
	RoleResident Role = "resident"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleAccountant, RoleResident:
		return true
	}
	return false
}

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus uint8

const (
	// AccountActive allows login and API access.
	AccountActive AccountStatus = iota
	// AccountPendingVerification blocks login until the email OTP is confirmed.
	AccountPendingVerification
	// AccountDisabled is set by a manager; sessions are revoked.
	AccountDisabled
	// AccountLocked is set by abuse controls; sessions are revoked.
	AccountLocked
	// AccountDeleted is a terminal soft-delete state.
	AccountDeleted
)

// String returns the wire representation used in profiles and storage.
func (s AccountStatus) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountPendingVerification:
		return "pending_verification"
	case AccountDisabled:
		return "disabled"
	case AccountLocked:
		return "locked"
	case AccountDeleted:
		return "deleted"
	}
	return "unknown"
}

func accountStatusToError(status AccountStatus) error {
	switch status {
	case AccountDisabled:
		return ErrAccountDisabled
	case AccountLocked:
		return ErrAccountLocked
	case AccountDeleted:
		return ErrAccountDeleted
	}
	return nil
}

// UserRecord is the full account record exchanged with a [UserProvider].
// It carries the credential hash, lifecycle status, role, and the version
// counter used to invalidate outstanding tokens on status changes.
type UserRecord struct {
	UserID         string
	Email          string
	PasswordHash   string
	FullName       string
	Phone          string
	Unit           string
	Role           Role
	Status         AccountStatus
	EmailVerified  bool
	AccountVersion uint32
}

// Profile converts the record into its wire shape. The password hash never
// leaves the record.
func (u UserRecord) Profile() UserProfile {
	return UserProfile{
		ID:            u.UserID,
		Email:         u.Email,
		FullName:      u.FullName,
		Phone:         u.Phone,
		Unit:          u.Unit,
		Role:          u.Role,
		Status:        u.Status.String(),
		EmailVerified: u.EmailVerified,
	}
}

// UserProfile is the denormalized profile served by /users/me and cached by
// the client SDK.
type UserProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	Phone         string `json:"phone,omitempty"`
	Unit          string `json:"unit,omitempty"`
	Role          Role   `json:"role"`
	Status        string `json:"status"`
	EmailVerified bool   `json:"email_verified"`
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Email          string
	PasswordHash   string
	FullName       string
	Phone          string
	Unit           string
	Role           Role
	Status         AccountStatus
	AccountVersion uint32
}

// UserProvider is the interface the engine uses to reach the account
// database. Implementations must return [ErrProviderDuplicateEmail] from
// CreateUser when the email is already registered, and treat emails
// case-insensitively.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	UpdateAccountStatus(ctx context.Context, userID string, status AccountStatus) (UserRecord, error)
	MarkEmailVerified(ctx context.Context, userID string) error
}

// AuthResult is returned by [Engine.Validate]. It identifies the
// authenticated user, their role, and the backing session.
type AuthResult struct {
	UserID    string
	Role      Role
	SessionID string
}

// LoginResult carries the freshly issued token pair plus the profile the
// client caches.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserProfile
}

// RegisterRequest is the input for [Engine.Register]. Email and Password are
// required; Role defaults to [Config.Registration.DefaultRole].
type RegisterRequest struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Unit     string
	Role     Role
}

// RegisterResult identifies the pending account and carries the OTP
// challenge the caller must deliver to the registrant's mailbox.
type RegisterResult struct {
	UserID    string
	Challenge OTPChallenge
}

// OTPChallenge is a one-time code bound to an email address. The engine
// never sends mail itself; callers hand the challenge to a mailer.
type OTPChallenge struct {
	Email string
	Code  string
}
