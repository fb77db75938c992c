package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

// Config is the process configuration, read from the environment.
type Config struct {
	ListenAddr string `env:"KOGU_LISTEN_ADDR" envDefault:":8080"`

	RedisAddr     string `env:"KOGU_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"KOGU_REDIS_PASSWORD"`
	RedisDB       int    `env:"KOGU_REDIS_DB" envDefault:"0"`

	SQLitePath string `env:"KOGU_SQLITE_PATH" envDefault:"kogu.db"`

	JWTSecret  string        `env:"KOGU_JWT_SECRET"`
	AccessTTL  time.Duration `env:"KOGU_ACCESS_TTL" envDefault:"10m"`
	RefreshTTL time.Duration `env:"KOGU_REFRESH_TTL" envDefault:"336h"`

	OTPDigits         int           `env:"KOGU_OTP_DIGITS" envDefault:"6"`
	OTPTTL            time.Duration `env:"KOGU_OTP_TTL" envDefault:"10m"`
	OTPResendCooldown time.Duration `env:"KOGU_OTP_RESEND_COOLDOWN" envDefault:"1m"`

	MaxLoginAttempts      int           `env:"KOGU_MAX_LOGIN_ATTEMPTS" envDefault:"10"`
	LoginCooldown         time.Duration `env:"KOGU_LOGIN_COOLDOWN" envDefault:"15m"`
	MaxRegistrationsPerIP int           `env:"KOGU_MAX_REGISTRATIONS_PER_IP" envDefault:"5"`

	SecureCookies bool   `env:"KOGU_SECURE_COOKIES" envDefault:"false"`
	ExposeMetrics bool   `env:"KOGU_EXPOSE_METRICS" envDefault:"true"`
	LogLevel      string `env:"KOGU_LOG_LEVEL" envDefault:"info"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// engineConfig maps the process environment onto the engine defaults.
func (c Config) engineConfig() (kogu.Config, error) {
	if len(c.JWTSecret) < 32 {
		return kogu.Config{}, fmt.Errorf("KOGU_JWT_SECRET must be at least 32 bytes")
	}

	cfg := kogu.DefaultConfig()
	cfg.JWT.Secret = []byte(c.JWTSecret)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.Session.Lifetime = c.RefreshTTL
	cfg.Security.MaxLoginAttempts = c.MaxLoginAttempts
	cfg.Security.LoginCooldown = c.LoginCooldown
	cfg.Registration.MaxPerIP = c.MaxRegistrationsPerIP
	cfg.Verification.Digits = c.OTPDigits
	cfg.Verification.TTL = c.OTPTTL
	cfg.Verification.ResendCooldown = c.OTPResendCooldown
	cfg.PasswordReset.Digits = c.OTPDigits
	cfg.PasswordReset.TTL = c.OTPTTL
	cfg.PasswordReset.ResendCooldown = c.OTPResendCooldown
	return cfg, nil
}

func (c Config) newLogger() (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", c.LogLevel, err)
	}
	zapCfg.Level = level
	return zapCfg.Build()
}
