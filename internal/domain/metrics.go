package domain

import "time"

// RequestOutcome describes how a queued resource request ended.
type RequestOutcome string

const (
	// RequestOutcomeResolved indicates the request received a resource.
	RequestOutcomeResolved RequestOutcome = "resolved"
	// RequestOutcomeRejected indicates the request failed.
	RequestOutcomeRejected RequestOutcome = "rejected"
	// RequestOutcomeAborted indicates the caller gave up.
	RequestOutcomeAborted RequestOutcome = "aborted"
	// RequestOutcomeTimedOut indicates the request deadline passed.
	RequestOutcomeTimedOut RequestOutcome = "timed_out"
)

// AcquireFailureReason describes why acquire was rejected up front.
type AcquireFailureReason string

const (
	// AcquireFailurePoolFull indicates the request queue was at capacity.
	AcquireFailurePoolFull AcquireFailureReason = "pool_full"
	// AcquireFailureEnding indicates the pool was draining.
	AcquireFailureEnding AcquireFailureReason = "ending"
	// AcquireFailureDestroyed indicates the pool was terminated.
	AcquireFailureDestroyed AcquireFailureReason = "destroyed"
	// AcquireFailureNoCapability indicates no pool matched the capability set.
	AcquireFailureNoCapability AcquireFailureReason = "no_capability"
	// AcquireFailureNoPool indicates every candidate pool was saturated.
	AcquireFailureNoPool AcquireFailureReason = "no_pool"
)

// Metrics records operational metrics for pools and clusters.
type Metrics interface {
	ObserveFactory(pool string, duration time.Duration, err error)
	ObserveDispose(pool string, err error)
	ObserveDestroy(pool string)
	ObservePing(pool string, duration time.Duration, err error)
	ObserveRequestWait(pool string, duration time.Duration, outcome RequestOutcome)
	ObserveAcquireFailure(pool string, reason AcquireFailureReason)
	SetPooled(pool string, count int)
	SetAvailable(pool string, count int)
	SetQueued(pool string, count int)
	SetAcquiring(pool string, count int)
}
