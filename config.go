package mfaflow

import (
	"fmt"
	"time"
)

// ChallengeConfig tunes OTP challenge pacing and validation.
type ChallengeConfig struct {
	// ResendCooldown is the minimum wall-clock gap between OTP sends for the
	// same authentication or device target.
	ResendCooldown time.Duration
	// MaxAttempts is the validation failure count that triggers a hard
	// warning. Attempts past the limit are still forwarded to the platform.
	MaxAttempts int
	// OTPDigits is the exact code length accepted for remote validation.
	OTPDigits int
	// StateTTL bounds how long cooldown and attempt counters live in redis.
	StateTTL time.Duration
}

// PolicyConfig tunes device authentication policy caching.
type PolicyConfig struct {
	CacheTTL time.Duration
}

// TokenConfig tunes the token watcher.
type TokenConfig struct {
	PollInterval time.Duration
}

// StoreConfig names the redis keyspace used by the credential store and the
// challenge limiter.
type StoreConfig struct {
	RedisPrefix   string
	ChangeChannel string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Config is the full engine configuration. Zero values are filled in from
// defaultConfig by the builder.
type Config struct {
	Challenge ChallengeConfig
	Policy    PolicyConfig
	Token     TokenConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

func defaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			ResendCooldown: 60 * time.Second,
			MaxAttempts:    3,
			OTPDigits:      6,
			StateTTL:       30 * time.Minute,
		},
		Policy: PolicyConfig{
			CacheTTL: 5 * time.Minute,
		},
		Token: TokenConfig{
			PollInterval: 5 * time.Second,
		},
		Store: StoreConfig{
			RedisPrefix:   "mfc",
			ChangeChannel: "mfc:changed",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func mergeConfig(cfg Config) Config {
	def := defaultConfig()
	if cfg.Challenge.ResendCooldown == 0 {
		cfg.Challenge.ResendCooldown = def.Challenge.ResendCooldown
	}
	if cfg.Challenge.MaxAttempts == 0 {
		cfg.Challenge.MaxAttempts = def.Challenge.MaxAttempts
	}
	if cfg.Challenge.OTPDigits == 0 {
		cfg.Challenge.OTPDigits = def.Challenge.OTPDigits
	}
	if cfg.Challenge.StateTTL == 0 {
		cfg.Challenge.StateTTL = def.Challenge.StateTTL
	}
	if cfg.Policy.CacheTTL == 0 {
		cfg.Policy.CacheTTL = def.Policy.CacheTTL
	}
	if cfg.Token.PollInterval == 0 {
		cfg.Token.PollInterval = def.Token.PollInterval
	}
	if cfg.Store.RedisPrefix == "" {
		cfg.Store.RedisPrefix = def.Store.RedisPrefix
	}
	if cfg.Store.ChangeChannel == "" {
		cfg.Store.ChangeChannel = def.Store.ChangeChannel
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Challenge.ResendCooldown <= 0 {
		return fmt.Errorf("challenge resend cooldown must be positive, got %s", c.Challenge.ResendCooldown)
	}
	if c.Challenge.MaxAttempts < 1 {
		return fmt.Errorf("challenge max attempts must be at least 1, got %d", c.Challenge.MaxAttempts)
	}
	if c.Challenge.OTPDigits < 4 || c.Challenge.OTPDigits > 10 {
		return fmt.Errorf("otp digits must be between 4 and 10, got %d", c.Challenge.OTPDigits)
	}
	if c.Challenge.StateTTL <= 0 {
		return fmt.Errorf("challenge state ttl must be positive, got %s", c.Challenge.StateTTL)
	}
	if c.Policy.CacheTTL < 0 {
		return fmt.Errorf("policy cache ttl must not be negative, got %s", c.Policy.CacheTTL)
	}
	if c.Token.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("token poll interval must be at least 100ms, got %s", c.Token.PollInterval)
	}
	if c.Store.RedisPrefix == "" {
		return fmt.Errorf("store redis prefix must not be empty")
	}
	return nil
}
