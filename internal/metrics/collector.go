// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the packet pipeline's Prometheus counters and
// histograms: how many frames were captured, accepted, rejected (by the
// parser or the firewall), written to storage, replayed, or dropped, plus flush
// and replay-send latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "stagrdb"
	subsystem = "node"
)

// Collector holds every Prometheus metric the pipeline reports.
type Collector struct {
	Captured prometheus.Counter
	Accepted prometheus.Counter
	Denied   prometheus.Counter
	Written  prometheus.Counter
	Replayed prometheus.Counter
	Dropped  *prometheus.CounterVec

	FlushDuration      prometheus.Histogram
	ReplaySendDuration prometheus.Histogram
}

// labelReason labels why a frame never reached storage or the wire.
const labelReason = "reason"

// NewCollector builds and registers the Collector's metrics against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		Captured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "packets_captured_total",
			Help: "Total frames read off the capture interface.",
		}),
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "packets_accepted_total",
			Help: "Total frames that passed firewall evaluation.",
		}),
		Denied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "packets_denied_total",
			Help: "Total frames rejected by the parser, including firewall denials.",
		}),
		Written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "packets_written_total",
			Help: "Total packets bulk-inserted into storage.",
		}),
		Replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "packets_replayed_total",
			Help: "Total peer packets retransmitted on the local interface.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "packets_dropped_total",
			Help: "Total frames dropped before capture or replay, by reason.",
		}, []string{labelReason}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "flush_duration_seconds",
			Help:    "Duration of each buffer-to-storage flush.",
			Buckets: prometheus.DefBuckets,
		}),
		ReplaySendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "replay_send_duration_seconds",
			Help:    "Duration of each peer-packet replay cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.Captured, c.Accepted, c.Denied, c.Written, c.Replayed,
		c.Dropped, c.FlushDuration, c.ReplaySendDuration,
	)

	return c
}

// ObservePacketsWritten implements writer.Metrics.
func (c *Collector) ObservePacketsWritten(n int) {
	c.Written.Add(float64(n))
}

// ObserveFlushDuration implements writer.Metrics.
func (c *Collector) ObserveFlushDuration(d time.Duration) {
	c.FlushDuration.Observe(d.Seconds())
}

// ObserveReplaySendDuration records the wall-clock duration of one
// reader batch's replay send (the fetch itself is not included).
func (c *Collector) ObserveReplaySendDuration(d time.Duration) {
	c.ReplaySendDuration.Observe(d.Seconds())
}

// IncCaptured, IncAccepted, IncDenied, IncReplayed and IncDropped report
// the capture/firewall/reader stages' per-frame outcomes.
func (c *Collector) IncCaptured() { c.Captured.Inc() }
func (c *Collector) IncAccepted() { c.Accepted.Inc() }
func (c *Collector) IncDenied()   { c.Denied.Inc() }
func (c *Collector) IncReplayed() { c.Replayed.Inc() }

func (c *Collector) IncDropped(reason string) { c.Dropped.WithLabelValues(reason).Inc() }
