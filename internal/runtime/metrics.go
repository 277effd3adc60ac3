// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package runtime

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records runtime activity.
type Metrics struct {
	Invocations *prometheus.CounterVec
	GasBurnt    *prometheus.HistogramVec
}

// NewMetrics creates and registers the runtime metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "passguess_invocations_total",
				Help: "Total number of contract invocations by kind, method and status",
			},
			[]string{"kind", "method", "status"},
		),
		GasBurnt: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "passguess_gas_burnt",
				Help:    "Gas burnt per contract invocation",
				Buckets: prometheus.ExponentialBuckets(float64(Tgas)/1000, 4, 10),
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(m.Invocations)
	reg.MustRegister(m.GasBurnt)
	return m
}

func (m *Metrics) observe(kind MethodKind, method, code string, gas uint64) {
	if m == nil {
		return
	}
	status := "ok"
	if code != "" {
		status = strings.ToLower(code)
	}
	m.Invocations.WithLabelValues(string(kind), method, status).Inc()
	m.GasBurnt.WithLabelValues(string(kind)).Observe(float64(gas))
}
