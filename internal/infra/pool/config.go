package pool

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"poold/internal/domain"
	"poold/internal/infra/telemetry"
)

// NoTimeout disables a deadline that would otherwise default.
const NoTimeout = domain.NoTimeout

// Factory produces a new resource. The context carries the acquire
// deadline when one is configured.
type Factory[R comparable] func(ctx context.Context) (R, error)

// DisposeFunc gracefully releases a resource.
type DisposeFunc[R comparable] func(ctx context.Context, resource R) error

// DestroyFunc forcefully tears a resource down, fire and forget.
type DestroyFunc[R comparable] func(resource R)

// PingFunc health-checks a resource before it is handed out.
type PingFunc[R comparable] func(ctx context.Context, resource R) error

// BackoffConfig shapes the retry schedule for initial factory failures.
type BackoffConfig struct {
	Base time.Duration
	Max  time.Duration
}

// Hooks are optional per-event callbacks. Warn, error and requeue events
// are also logged through the pool's logger whether or not a hook is set;
// request and drain events are reported only through their hooks.
type Hooks[R comparable] struct {
	OnRequest func(*Request[R])
	OnRequeue func(*Request[R])
	OnDrain   func()
	OnWarn    func(error)
	OnError   func(error)
}

// Config describes a pool. All fields are fixed once the pool is
// constructed.
type Config[R comparable] struct {
	Name string

	Acquire Factory[R]     // required
	Dispose DisposeFunc[R] // required
	Destroy DestroyFunc[R]
	Ping    PingFunc[R]

	Min         int
	Max         int // 0 selects DefaultMax
	MaxRequests int // 0 = unlimited

	AcquireTimeout time.Duration // 0 selects default, NoTimeout disables
	DisposeTimeout time.Duration // 0 selects default, NoTimeout disables destroy fallback
	PingTimeout    time.Duration // 0 selects default
	IdleTimeout    time.Duration // 0 selects default
	SyncInterval   time.Duration // 0 selects default, NoTimeout disables sync and reap
	RequestTimeout time.Duration // 0 = no per-request deadline
	BailAfter      time.Duration // 0 = unlimited initial retry window

	Backoff      BackoffConfig
	Capabilities []string

	Logger  *zap.Logger
	Metrics domain.Metrics
	Health  *telemetry.HealthTracker
	Hooks   Hooks[R]

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (c *Config[R]) normalize() error {
	if c.Acquire == nil {
		return errors.New("acquire operation is required")
	}
	if c.Dispose == nil {
		return errors.New("dispose operation is required")
	}
	if c.Min < 0 {
		return errors.New("min cannot be negative")
	}
	if c.Max == 0 {
		c.Max = domain.DefaultMax
	}
	if c.Max < 1 {
		return errors.New("max must be at least 1")
	}
	if c.Min > c.Max {
		return errors.New("min cannot be greater than max")
	}
	if c.MaxRequests < 0 {
		return errors.New("maxRequests must be at least 1")
	}

	var err error
	if c.AcquireTimeout, err = normalizeTimeout("acquireTimeout", c.AcquireTimeout, domain.DefaultAcquireTimeoutSeconds*time.Second, true); err != nil {
		return err
	}
	if c.DisposeTimeout, err = normalizeTimeout("disposeTimeout", c.DisposeTimeout, domain.DefaultDisposeTimeoutSeconds*time.Second, true); err != nil {
		return err
	}
	if c.PingTimeout, err = normalizeTimeout("pingTimeout", c.PingTimeout, domain.DefaultPingTimeoutSeconds*time.Second, false); err != nil {
		return err
	}
	if c.SyncInterval, err = normalizeTimeout("syncInterval", c.SyncInterval, domain.DefaultSyncIntervalSeconds*time.Second, true); err != nil {
		return err
	}
	if c.IdleTimeout != 0 && c.SyncInterval == NoTimeout {
		return errors.New("idleTimeout cannot be set when syncInterval is disabled")
	}
	if c.IdleTimeout, err = normalizeTimeout("idleTimeout", c.IdleTimeout, domain.DefaultIdleTimeoutSeconds*time.Second, false); err != nil {
		return err
	}
	if c.RequestTimeout != NoTimeout && c.RequestTimeout < 0 {
		return errors.New("requestTimeout must be a positive duration")
	}
	if c.BailAfter != NoTimeout && c.BailAfter < 0 {
		return errors.New("bailAfter cannot be negative")
	}
	if c.BailAfter == NoTimeout {
		c.BailAfter = 0
	}

	if c.Backoff.Base <= 0 {
		c.Backoff.Base = domain.DefaultBackoffBaseMillis * time.Millisecond
	}
	if c.Backoff.Max <= 0 {
		c.Backoff.Max = domain.DefaultBackoffMaxMillis * time.Millisecond
	}

	if c.Name == "" {
		c.Name = "pool"
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = telemetry.NewNoopMetrics()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

func normalizeTimeout(name string, value, fallback time.Duration, allowDisable bool) (time.Duration, error) {
	if value == NoTimeout {
		if !allowDisable {
			return 0, errors.New(name + " must be a positive duration")
		}
		return NoTimeout, nil
	}
	if value < 0 {
		return 0, errors.New(name + " must be a positive duration")
	}
	if value == 0 {
		return fallback, nil
	}
	return value, nil
}
