// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus instruments.
type Metrics struct {
	requests      *prometheus.CounterVec
	activeStreams prometheus.Gauge
}

// NewMetrics registers the server instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "a2a_requests_total",
			Help: "JSON-RPC requests handled, by method and HTTP status.",
		}, []string{"method", "code"}),
		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "a2a_active_streams",
			Help: "Currently open SSE streams.",
		}),
	}
}

func (m *Metrics) observeRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) streamOpened() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

func (m *Metrics) streamClosed() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}
