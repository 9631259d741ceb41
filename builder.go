package goFlow

import (
	"errors"

	"github.com/MrEthical07/goFlow/internal/challenge"
	"github.com/MrEthical07/goFlow/internal/stores"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goFlow APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	memory bool

	auditSink AuditSink

	// test seam: overrides the HTTP vendor client.
	challengeClient challenge.Client

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
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects the shared Redis store backend. The client's lifecycle
// stays with the caller.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMemoryStore selects the single-process in-memory store backend. Only
// acceptable when exactly one instance is running.
func (b *Builder) WithMemoryStore() *Builder {
	b.memory = true
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) withChallengeClient(client challenge.Client) *Builder {
	b.challengeClient = client
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil && !b.memory {
		return nil, errors.New("a store backend is required: WithRedis or WithMemoryStore")
	}
	if b.redis != nil && b.memory {
		return nil, errors.New("exactly one store backend must be selected")
	}

	var store stores.Store
	if b.redis != nil {
		store = stores.NewRedisStore(b.redis, cfg.Flow.RedisPrefix)
	} else {
		store = stores.NewMemoryStore()
	}

	client := b.challengeClient
	var cache *challenge.Cache
	if client == nil {
		if cfg.Challenge.BaseURL == "" || cfg.Challenge.Secret == "" {
			return nil, errors.New("Challenge.BaseURL and Challenge.Secret are required")
		}
		httpClient, err := challenge.NewHTTPClient(challenge.Config{
			BaseURL:     cfg.Challenge.BaseURL,
			Secret:      cfg.Challenge.Secret,
			Timeout:     cfg.Challenge.Timeout,
			MaxRetries:  cfg.Challenge.MaxRetries,
			BackoffBase: cfg.Challenge.BackoffBase,
		})
		if err != nil {
			return nil, err
		}
		client = httpClient

		// Multi-tenant deployments derive the vendor credential from the
		// caller's own credential; each distinct credential gets its own
		// cached client.
		cache = challenge.NewCache(func(secret string) (challenge.Client, error) {
			return challenge.NewHTTPClient(challenge.Config{
				BaseURL:     cfg.Challenge.BaseURL,
				Secret:      secret,
				Timeout:     cfg.Challenge.Timeout,
				MaxRetries:  cfg.Challenge.MaxRetries,
				BackoffBase: cfg.Challenge.BackoffBase,
			})
		})
	}

	engine := &Engine{
		config:      cfg,
		store:       store,
		challenge:   client,
		clientCache: cache,
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:     NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
