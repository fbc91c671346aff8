// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "l2info"

// Metrics holds the daemon counters on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	messages      *prometheus.CounterVec
	decodeErrors  *prometheus.CounterVec
	mappingErrors *prometheus.CounterVec
	sessions      prometheus.Gauge
	imports       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dlep",
			Name:      "messages_total",
			Help:      "DLEP messages received, by message type.",
		}, []string{"type"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dlep",
			Name:      "decode_errors_total",
			Help:      "DLEP messages or data items dropped as malformed.",
		}, []string{"kind"}),
		mappingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dlep",
			Name:      "mapping_errors_total",
			Help:      "Extension mappings stopped by a malformed data item.",
		}, []string{"extension"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "dlep",
			Name:      "sessions",
			Help:      "Open DLEP sessions.",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "snapshot",
			Name:      "imports_total",
			Help:      "Snapshot imports, by result.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(m.messages, m.decodeErrors, m.mappingErrors, m.sessions, m.imports)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) importResult(err error) {
	if err != nil {
		m.imports.WithLabelValues("error").Inc()
		return
	}
	m.imports.WithLabelValues("ok").Inc()
}
