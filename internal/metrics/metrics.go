// Package metrics registers the gateway's Prometheus collectors. All vecs
// live on the default registry and are served by the REST layer at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts processed frames by transport ("ws", "udp") and
	// outcome ("success", "malformed", "unauthorized", "dropped", "ai_error").
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_frames_total",
			Help: "Frames processed by the pipeline, by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	// FrameDuration observes end-to-end pipeline latency per frame.
	FrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_frame_duration_seconds",
			Help:    "Pipeline latency from envelope decode to response emit",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ReassemblyEvictions counts partial messages dropped by the staleness
	// sweeper. Evicted frames are silently lost; senders must not rely on a
	// reply for every frame.
	ReassemblyEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_reassembly_evictions_total",
			Help: "Stale UDP partial messages evicted by the sweeper",
		},
	)

	// ReassemblyActive gauges in-flight partial messages.
	ReassemblyActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_reassembly_active",
			Help: "UDP partial messages currently buffered",
		},
	)

	// CheckoutsTotal counts checkout attempts by result
	// ("committed", "duplicate", "rejected", "failed").
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_checkouts_total",
			Help: "Checkout transactions by result",
		},
		[]string{"result"},
	)

	// AuditDropped counts scan-audit rows lost to storage errors. Loss here
	// never blocks or fails the frame response.
	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_scan_audit_dropped_total",
			Help: "Scan-audit inserts discarded after a storage error",
		},
	)
)
