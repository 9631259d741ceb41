package goFlow

import (
	"errors"
	"time"
)

// Variant defines a public type used by goFlow APIs.
//
// Variant selects how a pending flow learns its terminal state: by polling
// the vendor on re-entry, or by an out-of-band vendor callback. The two are
// deployment variants of one contract and never run simultaneously.
type Variant int

const (
	// VariantPoll is an exported constant or variable used by the flow engine.
	VariantPoll Variant = iota
	// VariantCallback is an exported constant or variable used by the flow engine.
	VariantCallback
)

// Config defines a public type used by goFlow APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Flow      FlowConfig
	Challenge ChallengeConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Variant   Variant
}

/*
====================================
FLOW CONFIG
====================================
*/

// FlowConfig defines a public type used by goFlow APIs.
//
// FlowConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FlowConfig struct {
	// TTL is the lifetime of a flow record from its last save. An expired
	// record is indistinguishable from a never-seen flow id.
	TTL time.Duration
	// LockTTL bounds the per-flow initiation lock. It must outlive one
	// vendor call but stay short enough to self-heal after a crash.
	LockTTL time.Duration
	// Action is the vendor action name tracked for every flow.
	Action string
	// CallbackURL is this deployment's public callback endpoint. Used only
	// by the callback variant as the vendor's post-challenge redirect
	// target; the flow id is appended as a query parameter.
	CallbackURL string
	// RedisPrefix namespaces all keys when the Redis backend is used.
	RedisPrefix string
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig defines a public type used by goFlow APIs.
//
// ChallengeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChallengeConfig struct {
	BaseURL string
	Secret  string
	// Timeout is the hard per-call deadline for vendor requests.
	Timeout time.Duration
	// MaxRetries caps retry attempts for the transient failure allow-list.
	MaxRetries uint64
	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by goFlow APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goFlow APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Flow: FlowConfig{
			TTL:         15 * time.Minute,
			LockTTL:     30 * time.Second,
			Action:      "signIn",
			RedisPrefix: "gfl",
		},
		Challenge: ChallengeConfig{
			Timeout:     5 * time.Second,
			MaxRetries:  2,
			BackoffBase: 200 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Variant: VariantPoll,
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a full copy.
	return cfg
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.Flow.TTL <= 0 {
		return errors.New("Flow.TTL must be positive")
	}
	if c.Flow.LockTTL <= 0 {
		return errors.New("Flow.LockTTL must be positive")
	}
	if c.Flow.LockTTL >= c.Flow.TTL {
		return errors.New("Flow.LockTTL must be shorter than Flow.TTL")
	}
	if c.Flow.Action == "" {
		return errors.New("Flow.Action must be set")
	}
	if c.Challenge.Timeout <= 0 {
		return errors.New("Challenge.Timeout must be positive")
	}
	if c.Variant != VariantPoll && c.Variant != VariantCallback {
		return errors.New("unknown flow variant")
	}
	return nil
}
