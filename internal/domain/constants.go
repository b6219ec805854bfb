package domain

const (
	DefaultMax                        = 10
	DefaultAcquireTimeoutSeconds      = 30
	DefaultDisposeTimeoutSeconds      = 30
	DefaultPingTimeoutSeconds         = 10
	DefaultIdleTimeoutSeconds         = 60
	DefaultSyncIntervalSeconds        = 10
	DefaultBackoffBaseMillis          = 100
	DefaultBackoffMaxMillis           = 10000
	DefaultDialTimeoutSeconds         = 5
	DefaultObservabilityListenAddress = "0.0.0.0:9090"
)
