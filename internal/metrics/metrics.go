package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the provisioning and health collectors. One instance is
// constructed per process and shared through DI.
type Metrics struct {
	SetupTotal        *prometheus.CounterVec
	TeardownTotal     *prometheus.CounterVec
	CompensationTotal *prometheus.CounterVec
	ValidationTotal   *prometheus.CounterVec
	HealthBucket      *prometheus.GaugeVec
	ReconcileDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SetupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopfabric",
			Subsystem: "domains",
			Name:      "setup_total",
			Help:      "Domain setup attempts by result.",
		}, []string{"result"}),
		TeardownTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopfabric",
			Subsystem: "domains",
			Name:      "teardown_total",
			Help:      "Domain teardown attempts by result.",
		}, []string{"result"}),
		CompensationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopfabric",
			Subsystem: "domains",
			Name:      "compensation_total",
			Help:      "Saga compensation runs by step and result.",
		}, []string{"step", "result"}),
		ValidationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopfabric",
			Subsystem: "domains",
			Name:      "validation_total",
			Help:      "Real-time hostname validations by outcome.",
		}, []string{"outcome"}),
		HealthBucket: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shopfabric",
			Subsystem: "domains",
			Name:      "health_bucket",
			Help:      "Domains per derived health bucket after the last sweep.",
		}, []string{"bucket"}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shopfabric",
			Subsystem: "domains",
			Name:      "reconcile_duration_seconds",
			Help:      "Wall time of a full health reconciliation sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
