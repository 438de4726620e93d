package mfaflow

import (
	"errors"

	"github.com/MrEthical07/mfaflow/credstore"
	"github.com/MrEthical07/mfaflow/internal/audit"
	"github.com/MrEthical07/mfaflow/oauth"
	"github.com/MrEthical07/mfaflow/platform"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by mfaflow APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	platform  platform.Client
	store     credstore.Store
	ceremony  CeremonyDriver
	exchanger oauth.Exchanger
	notifier  NotificationSink
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = mergeConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPlatformClient describes the withplatformclient operation and its observable behavior.
//
// WithPlatformClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithPlatformClient(client platform.Client) *Builder {
	b.platform = client
	return b
}

// WithCredentialStore overrides the default redis-backed credential store.
//
// WithCredentialStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCredentialStore(store credstore.Store) *Builder {
	b.store = store
	return b
}

// WithCeremonyDriver describes the withceremonydriver operation and its observable behavior.
//
// WithCeremonyDriver does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCeremonyDriver(driver CeremonyDriver) *Builder {
	b.ceremony = driver
	return b
}

// WithOAuthExchanger describes the withoauthexchanger operation and its observable behavior.
//
// WithOAuthExchanger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithOAuthExchanger(x oauth.Exchanger) *Builder {
	b.exchanger = x
	return b
}

// WithNotificationSink describes the withnotificationsink operation and its observable behavior.
//
// WithNotificationSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithNotificationSink(sink NotificationSink) *Builder {
	b.notifier = sink
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := mergeConfig(b.config)

	if b.platform == nil {
		return nil, errors.New("platform client required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		store = credstore.NewRedisStore(b.redis, cfg.Store.RedisPrefix, cfg.Store.ChangeChannel)
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = NoOpNotificationSink{}
	}

	e := &Engine{
		config:      cfg,
		platform:    b.platform,
		credentials: store,
		challenges:  newChallengeLimiter(b.redis, cfg.Store.RedisPrefix),
		policies:    newPolicyCache(b.platform, cfg.Policy.CacheTTL),
		ceremony:    b.ceremony,
		exchanger:   b.exchanger,
		notifier:    notifier,
		metrics:     NewMetrics(cfg.Metrics),
		tokenSignal: make(chan struct{}, 1),
	}

	if cfg.Audit.Enabled {
		e.audit = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}

	b.built = true
	return e, nil
}
