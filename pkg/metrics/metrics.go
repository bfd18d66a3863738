// Package metrics exposes orchestration counters on the default prometheus
// registerer. The node processes expose their own metrics endpoints; these
// collectors cover the orchestrator itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NodesBooted counts nodes that completed their boot stage, by role.
	NodesBooted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iotanet",
		Name:      "nodes_booted_total",
		Help:      "Nodes that completed boot, by role.",
	}, []string{"role"})

	// BootFailures counts aborted boots by the stage that failed.
	BootFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iotanet",
		Name:      "boot_failures_total",
		Help:      "Boot sequence failures, by stage.",
	}, []string{"stage"})

	// StageDuration observes wall time per boot stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "iotanet",
		Name:      "stage_duration_seconds",
		Help:      "Duration of orchestration stages.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage"})
)
