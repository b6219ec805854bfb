package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldPool       = "pool"
	FieldRequestID  = "request_id"
	FieldState      = "state"
	FieldDurationMs = "duration_ms"
	FieldCapability = "capability"
)

const (
	EventFactoryFailure = "factory_failure"
	EventFactoryTimeout = "factory_timeout"
	EventLateArrival    = "late_arrival"
	EventPingFailure    = "ping_failure"
	EventIdleReap       = "idle_reap"
	EventRequeue        = "requeue"
	EventDrain          = "drain"
	EventDisposeTimeout = "dispose_timeout"
	EventDisposeFailure = "dispose_failure"
	EventDestroyFailure = "destroy_failure"
	EventPoolEnding     = "pool_ending"
	EventPoolDestroyed  = "pool_destroyed"
	EventUsageError     = "usage_error"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func PoolField(pool string) zap.Field {
	return zap.String(FieldPool, pool)
}

func RequestIDField(id uint64) zap.Field {
	return zap.Uint64(FieldRequestID, id)
}

func StateField(state string) zap.Field {
	return zap.String(FieldState, state)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func CapabilityField(capabilities []string) zap.Field {
	return zap.Strings(FieldCapability, capabilities)
}
