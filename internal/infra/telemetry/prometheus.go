package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"poold/internal/domain"
)

type PrometheusMetrics struct {
	factoryDuration *prometheus.HistogramVec
	disposes        *prometheus.CounterVec
	destroys        *prometheus.CounterVec
	pingDuration    *prometheus.HistogramVec
	requestWait     *prometheus.HistogramVec
	acquireFailures *prometheus.CounterVec
	pooled          *prometheus.GaugeVec
	available       *prometheus.GaugeVec
	queued          *prometheus.GaugeVec
	acquiring       *prometheus.GaugeVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		factoryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poold_factory_duration_seconds",
				Help:    "Duration of resource factory calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"pool", "status"},
		),
		disposes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poold_disposes_total",
				Help: "Total number of graceful resource teardowns",
			},
			[]string{"pool", "status"},
		),
		destroys: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poold_destroys_total",
				Help: "Total number of forced resource teardowns",
			},
			[]string{"pool"},
		),
		pingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poold_ping_duration_seconds",
				Help:    "Duration of resource health checks in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"pool", "status"},
		),
		requestWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poold_request_wait_seconds",
				Help:    "Time resource requests spend between admission and fulfillment",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"pool", "outcome"},
		),
		acquireFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poold_acquire_failures_total",
				Help: "Total number of acquire calls rejected up front",
			},
			[]string{"pool", "reason"},
		),
		pooled: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "poold_pooled_resources",
				Help: "Current number of resources owned by the pool",
			},
			[]string{"pool"},
		),
		available: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "poold_available_resources",
				Help: "Current number of idle resources ready for loan",
			},
			[]string{"pool"},
		),
		queued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "poold_queued_requests",
				Help: "Current number of queued resource requests",
			},
			[]string{"pool"},
		),
		acquiring: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "poold_acquiring_resources",
				Help: "Current number of factory calls in flight",
			},
			[]string{"pool"},
		),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (p *PrometheusMetrics) ObserveFactory(pool string, duration time.Duration, err error) {
	p.factoryDuration.WithLabelValues(pool, statusLabel(err)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveDispose(pool string, err error) {
	p.disposes.WithLabelValues(pool, statusLabel(err)).Inc()
}

func (p *PrometheusMetrics) ObserveDestroy(pool string) {
	p.destroys.WithLabelValues(pool).Inc()
}

func (p *PrometheusMetrics) ObservePing(pool string, duration time.Duration, err error) {
	p.pingDuration.WithLabelValues(pool, statusLabel(err)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveRequestWait(pool string, duration time.Duration, outcome domain.RequestOutcome) {
	p.requestWait.WithLabelValues(pool, string(outcome)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveAcquireFailure(pool string, reason domain.AcquireFailureReason) {
	p.acquireFailures.WithLabelValues(pool, string(reason)).Inc()
}

func (p *PrometheusMetrics) SetPooled(pool string, count int) {
	p.pooled.WithLabelValues(pool).Set(float64(count))
}

func (p *PrometheusMetrics) SetAvailable(pool string, count int) {
	p.available.WithLabelValues(pool).Set(float64(count))
}

func (p *PrometheusMetrics) SetQueued(pool string, count int) {
	p.queued.WithLabelValues(pool).Set(float64(count))
}

func (p *PrometheusMetrics) SetAcquiring(pool string, count int) {
	p.acquiring.WithLabelValues(pool).Set(float64(count))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
