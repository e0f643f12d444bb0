// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth

import "github.com/prometheus/client_golang/prometheus"

// Gate decision outcomes as reported to the metrics collector.
const (
	OutcomeAllowed       = "allowed"
	OutcomeLoginRedirect = "login_redirect"
	OutcomeDenied        = "denied"
	OutcomeSkipped       = "skipped"
)

// Collector counts request gate decisions. A nil *Collector is a valid no-op,
// so hosts that don't scrape metrics can pass nothing.
type Collector struct {
	decisions *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rallye_gate_decisions_total",
			Help: "Request gate decisions by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.decisions)
	return c
}

func (c *Collector) record(outcome string) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(outcome).Inc()
}
