package kogu

import (
	"errors"
	"time"
)

// ValidationMode selects how access tokens are checked.
type ValidationMode uint8

const (
	// ModeJWTOnly trusts the JWT signature and expiry alone; no Redis
	// round-trip per request. Status changes take effect on the next refresh.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict additionally requires a live session record in Redis,
	// fail-closed when Redis is down.
	ModeStrict
)

// JWTConfig controls access token issuance and parsing.
type JWTConfig struct {
	// AccessTTL is the lifetime of issued access tokens.
	AccessTTL time.Duration
	// RefreshTTL bounds the lifetime of the refresh credential; it also caps
	// the session lifetime.
	RefreshTTL time.Duration
	// SigningMethod is "hs256" or "ed25519".
	SigningMethod string
	// Secret is the HS256 key. PrivateKey/PublicKey are the Ed25519 pair.
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

// SessionConfig controls the Redis session store.
type SessionConfig struct {
	// RedisPrefix namespaces every key the engine writes.
	RedisPrefix string
	// Lifetime is the absolute session lifetime; refresh rotation never
	// extends it.
	Lifetime time.Duration
}

// PasswordConfig holds Argon2id parameters and local policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinLength is enforced before hashing. Bytes, not runes.
	MinLength int
	// UpgradeOnLogin rehashes stored credentials that predate the current
	// parameters, best-effort after a successful verify.
	UpgradeOnLogin bool
}

// SecurityConfig holds login and refresh throttling knobs.
type SecurityConfig struct {
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	EnableIPThrottle      bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
	EnableRefreshThrottle bool
	// RequireVerifiedEmail blocks login, refresh, and strict validation for
	// accounts still pending OTP confirmation.
	RequireVerifiedEmail bool
}

// RegistrationConfig controls self-service account creation.
type RegistrationConfig struct {
	Enabled bool
	// DefaultRole is applied when the request carries no role. Self-service
	// registration only ever creates residents; staff roles are seeded.
	DefaultRole Role
	// MaxPerIP caps account creations per IP within CreationCooldown.
	MaxPerIP         int
	CreationCooldown time.Duration
}

// OTPConfig controls email OTP challenges for registration verification.
type OTPConfig struct {
	Enabled bool
	Digits  int
	// TTL is the challenge lifetime.
	TTL time.Duration
	// MaxAttempts caps wrong-code submissions before the challenge burns.
	MaxAttempts int
	// ResendCooldown is the minimum spacing between issued codes per email.
	ResendCooldown time.Duration
}

// ResetConfig controls the forgot-password flow.
type ResetConfig struct {
	Enabled     bool
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	// GrantTTL is the lifetime of the single-use reset grant minted after a
	// correct OTP.
	GrantTTL time.Duration
	// EnumerationDelay is slept before answering requests for unknown
	// emails, so timing does not reveal account existence.
	EnumerationDelay time.Duration
	ResendCooldown   time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the request path when the
	// buffer is saturated.
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Config aggregates all engine tuning. Obtain a baseline from
// [DefaultConfig] and override what the deployment needs.
type Config struct {
	JWT            JWTConfig
	Session        SessionConfig
	Password       PasswordConfig
	Security       SecurityConfig
	Registration   RegistrationConfig
	Verification   OTPConfig
	PasswordReset  ResetConfig
	ValidationMode ValidationMode
	Audit          AuditConfig
	Metrics        MetricsConfig
}

// DefaultConfig returns the settings a small deployment can run unmodified,
// except for the JWT key material which has no safe default.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     10 * time.Minute,
			RefreshTTL:    14 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "kogu",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "kg",
			Lifetime:    14 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:      10,
			LoginCooldown:         15 * time.Minute,
			EnableIPThrottle:      true,
			MaxRefreshAttempts:    30,
			RefreshCooldown:       time.Minute,
			EnableRefreshThrottle: true,
			RequireVerifiedEmail:  true,
		},
		Registration: RegistrationConfig{
			Enabled:          true,
			DefaultRole:      RoleResident,
			MaxPerIP:         5,
			CreationCooldown: time.Hour,
		},
		Verification: OTPConfig{
			Enabled:        true,
			Digits:         6,
			TTL:            10 * time.Minute,
			MaxAttempts:    5,
			ResendCooldown: time.Minute,
		},
		PasswordReset: ResetConfig{
			Enabled:          true,
			Digits:           6,
			TTL:              10 * time.Minute,
			MaxAttempts:      5,
			GrantTTL:         5 * time.Minute,
			EnumerationDelay: 120 * time.Millisecond,
			ResendCooldown:   time.Minute,
		},
		ValidationMode: ModeStrict,
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate rejects configurations the engine cannot run safely.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT.RefreshTTL must be positive")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT.AccessTTL must be shorter than RefreshTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.Secret) < 32 {
			return errors.New("JWT.Secret must be at least 32 bytes for hs256")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("JWT.PrivateKey required for ed25519")
		}
	default:
		return errors.New("JWT.SigningMethod must be hs256 or ed25519")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session.Lifetime must be positive")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session.RedisPrefix must not be empty")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password.MinLength must be at least 8")
	}
	if c.Registration.Enabled && !c.Registration.DefaultRole.Valid() {
		return errors.New("Registration.DefaultRole must be a known role")
	}
	if c.Verification.Enabled {
		if c.Verification.Digits < 6 || c.Verification.Digits > 10 {
			return errors.New("Verification.Digits must be between 6 and 10")
		}
		if c.Verification.TTL <= 0 || c.Verification.MaxAttempts <= 0 {
			return errors.New("Verification TTL and MaxAttempts must be positive")
		}
	}
	if c.PasswordReset.Enabled {
		if c.PasswordReset.Digits < 6 || c.PasswordReset.Digits > 10 {
			return errors.New("PasswordReset.Digits must be between 6 and 10")
		}
		if c.PasswordReset.TTL <= 0 || c.PasswordReset.GrantTTL <= 0 {
			return errors.New("PasswordReset TTLs must be positive")
		}
	}
	if c.ValidationMode != ModeJWTOnly && c.ValidationMode != ModeStrict {
		return ErrInvalidValidationMode
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneConfig(c Config) Config {
	out := c
	out.JWT.Secret = cloneBytes(c.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(c.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(c.JWT.PublicKey)
	return out
}
