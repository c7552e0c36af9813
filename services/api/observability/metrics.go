// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the reasoning API.
//
// # Description
//
// Metrics cover the solve endpoint: sessions by termination reason, hop
// count distribution, and end-to-end latency. Exposed via /metrics for
// Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "crag"

const solveSubsystem = "solve"

// SolveMetrics holds the Prometheus metrics for reasoning sessions.
//
// Initialize once at startup via InitMetrics, or with NewMetrics and a
// private registry in tests.
type SolveMetrics struct {
	// SessionsTotal counts completed sessions.
	// Labels: reason (success, max_steps_reached, ...), status (ok, error)
	SessionsTotal *prometheus.CounterVec

	// HopsPerSession measures hops used per completed session.
	HopsPerSession prometheus.Histogram

	// SessionDurationSeconds measures end-to-end solve latency.
	// Labels: reason
	SessionDurationSeconds *prometheus.HistogramVec

	// ActiveSessions tracks sessions currently inside the hop loop.
	ActiveSessions prometheus.Gauge
}

// DefaultMetrics is the instance registered against the global registry.
// Set by InitMetrics.
var DefaultMetrics *SolveMetrics

// InitMetrics registers the solve metrics with the default Prometheus
// registry. Call once at startup; a second call panics on duplicate
// registration.
func InitMetrics() *SolveMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates the solve metrics against an explicit registerer.
// Tests pass prometheus.NewRegistry() to avoid cross-test registration
// collisions.
func NewMetrics(reg prometheus.Registerer) *SolveMetrics {
	factory := promauto.With(reg)
	return &SolveMetrics{
		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: solveSubsystem,
				Name:      "sessions_total",
				Help:      "Completed reasoning sessions by termination reason and status",
			},
			[]string{"reason", "status"},
		),

		HopsPerSession: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: solveSubsystem,
				Name:      "hops_per_session",
				Help:      "Reasoning hops used per completed session",
				Buckets:   []float64{0, 1, 2, 3, 4, 5, 7, 10},
			},
		),

		SessionDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: solveSubsystem,
				Name:      "session_duration_seconds",
				Help:      "End-to-end solve latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"reason"},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: solveSubsystem,
				Name:      "active_sessions",
				Help:      "Reasoning sessions currently in flight",
			},
		),
	}
}

// ObserveSession records one completed session.
func (m *SolveMetrics) ObserveSession(reason string, hops int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(reason, "ok").Inc()
	m.HopsPerSession.Observe(float64(hops))
	m.SessionDurationSeconds.WithLabelValues(reason).Observe(durationSeconds)
}

// ObserveFailure records a solve call that returned an error instead of a
// terminal state (rejected input or cancellation).
func (m *SolveMetrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues("none", "error").Inc()
}
