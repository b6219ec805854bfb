package domain

import "time"

func secondsOrDefault(value *int, fallbackSeconds int) time.Duration {
	if value == nil {
		return time.Duration(fallbackSeconds) * time.Second
	}
	if *value <= 0 {
		return NoTimeout
	}
	return time.Duration(*value) * time.Second
}

// AcquireTimeout returns the factory guard duration, NoTimeout when disabled.
func (s PoolSpec) AcquireTimeout() time.Duration {
	return secondsOrDefault(s.AcquireTimeoutSeconds, DefaultAcquireTimeoutSeconds)
}

// DisposeTimeout returns the teardown guard duration, NoTimeout when disabled.
func (s PoolSpec) DisposeTimeout() time.Duration {
	return secondsOrDefault(s.DisposeTimeoutSeconds, DefaultDisposeTimeoutSeconds)
}

// SyncInterval returns the maintenance cadence, NoTimeout when disabled.
func (s PoolSpec) SyncInterval() time.Duration {
	return secondsOrDefault(s.SyncIntervalSeconds, DefaultSyncIntervalSeconds)
}

// PingTimeout returns the health check deadline, applying the default.
func (s PoolSpec) PingTimeout() time.Duration {
	if s.PingTimeoutSeconds <= 0 {
		return time.Duration(DefaultPingTimeoutSeconds) * time.Second
	}
	return time.Duration(s.PingTimeoutSeconds) * time.Second
}

// IdleTimeout returns how long a resource may sit idle before reaping.
func (s PoolSpec) IdleTimeout() time.Duration {
	if s.IdleTimeoutSeconds <= 0 {
		return time.Duration(DefaultIdleTimeoutSeconds) * time.Second
	}
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request deadline or zero when unset.
func (s PoolSpec) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// BailAfter returns the initial-error retry window or zero for unlimited.
func (s PoolSpec) BailAfter() time.Duration {
	if s.BailAfterSeconds <= 0 {
		return 0
	}
	return time.Duration(s.BailAfterSeconds) * time.Second
}

// BackoffBase returns the initial retry delay, applying the default.
func (s PoolSpec) BackoffBase() time.Duration {
	if s.BackoffBaseMillis <= 0 {
		return time.Duration(DefaultBackoffBaseMillis) * time.Millisecond
	}
	return time.Duration(s.BackoffBaseMillis) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling, applying the default.
func (s PoolSpec) BackoffMax() time.Duration {
	if s.BackoffMaxMillis <= 0 {
		return time.Duration(DefaultBackoffMaxMillis) * time.Millisecond
	}
	return time.Duration(s.BackoffMaxMillis) * time.Millisecond
}

// DialTimeout returns the backend dial deadline, applying the default.
func (s PoolSpec) DialTimeout() time.Duration {
	if s.DialTimeoutSeconds <= 0 {
		return time.Duration(DefaultDialTimeoutSeconds) * time.Second
	}
	return time.Duration(s.DialTimeoutSeconds) * time.Second
}
