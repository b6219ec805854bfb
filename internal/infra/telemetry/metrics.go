package telemetry

import (
	"time"

	"poold/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveFactory(_ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) ObserveDispose(_ string, _ error) {}

func (n *NoopMetrics) ObserveDestroy(_ string) {}

func (n *NoopMetrics) ObservePing(_ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) ObserveRequestWait(_ string, _ time.Duration, _ domain.RequestOutcome) {}

func (n *NoopMetrics) ObserveAcquireFailure(_ string, _ domain.AcquireFailureReason) {}

func (n *NoopMetrics) SetPooled(_ string, _ int) {}

func (n *NoopMetrics) SetAvailable(_ string, _ int) {}

func (n *NoopMetrics) SetQueued(_ string, _ int) {}

func (n *NoopMetrics) SetAcquiring(_ string, _ int) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
