package kogu

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/internal/rate"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/jwt"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/password"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/session"
)

// Builder assembles an [Engine]. A Builder is single-use; Build fails on the
// second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	logger       *zap.Logger

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, OTP challenges, and
// rate limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the account database adapter.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures that must not block
// request flows. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate-latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		userProvider: b.userProvider,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		otpStore:     newOTPStore(b.redis),
		resetGrants:  newResetGrantStore(b.redis),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
	}

	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		EnableRefreshThrottle: cfg.Security.EnableRefreshThrottle,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldown:         cfg.Security.LoginCooldown,
		MaxRefreshAttempts:    cfg.Security.MaxRefreshAttempts,
		RefreshCooldown:       cfg.Security.RefreshCooldown,
		MaxCreationsPerIP:     cfg.Registration.MaxPerIP,
		CreationCooldown:      cfg.Registration.CreationCooldown,
	})

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	signKey := cloneBytes(cfg.JWT.PrivateKey)
	if cfg.JWT.SigningMethod == string(jwt.MethodHS256) {
		signKey = cloneBytes(cfg.JWT.Secret)
	}
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    signKey,
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}
