// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus instrumentation for graphwatch.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	// MessagesTotal counts inbound frames by envelope type.
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphwatch",
			Name:      "messages_total",
			Help:      "Total number of inbound WebSocket messages by type.",
		},
		[]string{"type"},
	)

	// DecodeErrorsTotal counts frames dropped for protocol-level failures
	// (malformed JSON, unknown type, payload mismatch).
	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "graphwatch",
			Name:      "decode_errors_total",
			Help:      "Total number of inbound messages dropped by the codec.",
		},
	)

	// ReconnectsTotal counts scheduled reconnect attempts.
	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "graphwatch",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts scheduled.",
		},
	)

	// BatchesTotal counts non-empty batch flushes.
	BatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "graphwatch",
			Name:      "batches_total",
			Help:      "Total number of update batches delivered to subscribers.",
		},
	)

	// BatchSize observes the number of updates per delivered batch.
	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graphwatch",
			Name:      "batch_size_updates",
			Help:      "Updates per delivered batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// PingRTT observes application-level ping round-trip time.
	PingRTT = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graphwatch",
			Name:      "ping_rtt_seconds",
			Help:      "Keep-alive ping round-trip time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
		},
	)

	// ConnectionState publishes the numeric connection state
	// (0=disconnected 1=connecting 2=connected 3=reconnecting 4=error).
	ConnectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "graphwatch",
			Name:      "connection_state",
			Help:      "Current connection state of the graph stream client.",
		},
	)

	// PendingUpdates publishes the batching queue depth.
	PendingUpdates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "graphwatch",
			Name:      "pending_updates",
			Help:      "Updates accumulated and not yet flushed.",
		},
	)

	// SeriesValue publishes the latest sample of each aggregated metric
	// series (attention efficiency, memory usage, ping RTT).
	SeriesValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "graphwatch",
			Name:      "series_value",
			Help:      "Latest sample of each aggregated metric series.",
		},
		[]string{"series"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "graphwatch",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "graphwatch",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		MessagesTotal, DecodeErrorsTotal, ReconnectsTotal,
		BatchesTotal, BatchSize, PingRTT,
		ConnectionState, PendingUpdates, SeriesValue,
		buildInfo, uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with
// mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided
// values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}
