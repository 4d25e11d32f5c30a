// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the Intellisense API.
//
// # Description
//
// Metrics include:
//   - Request counters (by endpoint and status class)
//   - Validation failures (by endpoint and missing field)
//   - Graph size gauges (nodes, edges)
//   - Agent message counter and live feed subscriber gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every helper method is a no-op on a nil *Metrics so handlers can run
// without metrics in tests.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "intellisense"

// Metrics holds all Prometheus collectors for the API.
//
// # Fields
//
//   - RequestsTotal: Requests by endpoint and status code
//   - ValidationErrorsTotal: Rejected requests by endpoint and field
//   - GraphNodes: Current node count
//   - GraphEdges: Current edge count
//   - AgentMessagesTotal: Chat messages processed by outcome
//   - FeedSubscribers: Open live graph feed connections
type Metrics struct {
	RequestsTotal         *prometheus.CounterVec
	ValidationErrorsTotal *prometheus.CounterVec
	GraphNodes            prometheus.Gauge
	GraphEdges            prometheus.Gauge
	AgentMessagesTotal    *prometheus.CounterVec
	FeedSubscribers       prometheus.Gauge
}

// NewMetrics creates and registers all collectors with reg.
//
// # Inputs
//
//   - reg: Registry to register with. Nil uses prometheus.DefaultRegisterer.
//
// # Outputs
//
//   - *Metrics: The registered collectors.
//
// # Limitations
//
//   - Panics on duplicate registration with the same registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by endpoint and status code",
			},
			[]string{"endpoint", "status"},
		),

		ValidationErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "validation_errors_total",
				Help:      "Requests rejected for a missing required field",
			},
			[]string{"endpoint", "field"},
		),

		GraphNodes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "graph",
				Name:      "nodes",
				Help:      "Number of nodes in the graph",
			},
		),

		GraphEdges: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "graph",
				Name:      "edges",
				Help:      "Number of edges in the graph",
			},
		),

		AgentMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "agent",
				Name:      "messages_total",
				Help:      "Chat messages processed by outcome",
			},
			[]string{"status"},
		),

		FeedSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "graph",
				Name:      "feed_subscribers",
				Help:      "Open live graph feed connections",
			},
		),
	}
}

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint labels a route for metrics.
type Endpoint string

const (
	EndpointGraphQuery      Endpoint = "graph_query"
	EndpointGraphAll        Endpoint = "graph_all"
	EndpointGraphNodes      Endpoint = "graph_nodes"
	EndpointGraphEdges      Endpoint = "graph_edges"
	EndpointGraphFeed       Endpoint = "graph_feed"
	EndpointChat            Endpoint = "chat"
	EndpointDocumentAnalyze Endpoint = "document_analyze"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest counts a completed request.
func (m *Metrics) RecordRequest(endpoint Endpoint, status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), strconv.Itoa(status)).Inc()
}

// RecordValidationError counts a request rejected for a missing field.
func (m *Metrics) RecordValidationError(endpoint Endpoint, field string) {
	if m == nil {
		return
	}
	m.ValidationErrorsTotal.WithLabelValues(string(endpoint), field).Inc()
}

// SetGraphSize updates the node and edge gauges.
func (m *Metrics) SetGraphSize(nodes, edges int) {
	if m == nil {
		return
	}
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
}

// RecordAgentMessage counts a processed chat message.
func (m *Metrics) RecordAgentMessage(success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.AgentMessagesTotal.WithLabelValues(status).Inc()
}

// FeedOpened increments the feed subscriber gauge.
func (m *Metrics) FeedOpened() {
	if m == nil {
		return
	}
	m.FeedSubscribers.Inc()
}

// FeedClosed decrements the feed subscriber gauge.
func (m *Metrics) FeedClosed() {
	if m == nil {
		return
	}
	m.FeedSubscribers.Dec()
}
