// Package telemetry holds the Prometheus metrics registry shared across the
// core's subsystems.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every counter, histogram, and gauge the core emits.
type Metrics struct {
	Registry *prometheus.Registry

	HybridOpLatency *prometheus.HistogramVec
	ASRIngested     *prometheus.CounterVec
	BatchesClosed   prometheus.Counter
	AnchorOutcomes  *prometheus.CounterVec
	PTSByTier       *prometheus.GaugeVec
	QuotaRejections *prometheus.CounterVec
}

// New builds and registers the metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		HybridOpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pulsar_sentinel",
			Name:      "hybrid_op_duration_seconds",
			Help:      "Latency of hybrid PQC engine operations by op name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		ASRIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsar_sentinel",
			Name:      "asr_ingested_total",
			Help:      "Number of ASRs ingested by action kind.",
		}, []string{"action"}),
		BatchesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulsar_sentinel",
			Name:      "asr_batches_closed_total",
			Help:      "Number of Merkle batches closed.",
		}),
		AnchorOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsar_sentinel",
			Name:      "anchor_outcomes_total",
			Help:      "Anchor submission outcomes by result.",
		}, []string{"outcome"}),
		PTSByTier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pulsar_sentinel",
			Name:      "pts_agents_by_tier",
			Help:      "Number of PTS scoring calls that landed in each threat tier.",
		}, []string{"tier"}),
		QuotaRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsar_sentinel",
			Name:      "quota_rejections_total",
			Help:      "Rate-limit rejections by agent tier.",
		}, []string{"tier"}),
	}

	reg.MustRegister(
		m.HybridOpLatency,
		m.ASRIngested,
		m.BatchesClosed,
		m.AnchorOutcomes,
		m.PTSByTier,
		m.QuotaRejections,
	)
	return m
}
