package domain

import "time"

// NoTimeout disables a deadline that would otherwise apply.
const NoTimeout time.Duration = -1

// PoolSpec describes one backend pool in the catalog. Timeout fields use
// a pointer when an explicit zero is meaningful (zero disables the guard,
// nil selects the default).
type PoolSpec struct {
	Name                  string
	Network               string
	Address               string
	Capabilities          []string
	Min                   int
	Max                   int
	MaxRequests           int
	AcquireTimeoutSeconds *int
	DisposeTimeoutSeconds *int
	PingTimeoutSeconds    int
	IdleTimeoutSeconds    int
	SyncIntervalSeconds   *int
	RequestTimeoutSeconds int
	BailAfterSeconds      int
	BackoffBaseMillis     int
	BackoffMaxMillis      int
	DialTimeoutSeconds    int
}

// Equal reports whether two specs would build identical pools.
func (s PoolSpec) Equal(o PoolSpec) bool {
	if s.Name != o.Name || s.Network != o.Network || s.Address != o.Address {
		return false
	}
	if s.Min != o.Min || s.Max != o.Max || s.MaxRequests != o.MaxRequests {
		return false
	}
	if !equalIntPtr(s.AcquireTimeoutSeconds, o.AcquireTimeoutSeconds) ||
		!equalIntPtr(s.DisposeTimeoutSeconds, o.DisposeTimeoutSeconds) ||
		!equalIntPtr(s.SyncIntervalSeconds, o.SyncIntervalSeconds) {
		return false
	}
	if s.PingTimeoutSeconds != o.PingTimeoutSeconds ||
		s.IdleTimeoutSeconds != o.IdleTimeoutSeconds ||
		s.RequestTimeoutSeconds != o.RequestTimeoutSeconds ||
		s.BailAfterSeconds != o.BailAfterSeconds ||
		s.BackoffBaseMillis != o.BackoffBaseMillis ||
		s.BackoffMaxMillis != o.BackoffMaxMillis ||
		s.DialTimeoutSeconds != o.DialTimeoutSeconds {
		return false
	}
	if len(s.Capabilities) != len(o.Capabilities) {
		return false
	}
	for i := range s.Capabilities {
		if s.Capabilities[i] != o.Capabilities[i] {
			return false
		}
	}
	return true
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RuntimeConfig carries daemon-level settings from the catalog.
type RuntimeConfig struct {
	Observability ObservabilityConfig
}

// ObservabilityConfig configures the metrics/health HTTP endpoint.
type ObservabilityConfig struct {
	ListenAddress string
	EnableMetrics bool
	EnableHealthz bool
}

// Catalog is the parsed daemon configuration.
type Catalog struct {
	Pools   []PoolSpec
	Runtime RuntimeConfig
}
