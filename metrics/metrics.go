// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics is a thin prometheus.Registerer wrapper. Neither the
// cmd/chainclient binary nor package chainclient imports it; both use
// prometheus registerers directly.
package metrics

import (
    "github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the registry a process exposes on its metrics endpoint.
type Metrics struct {
    Registry prometheus.Registerer
}

// NewMetrics creates new metrics instance
func NewMetrics(reg prometheus.Registerer) *Metrics {
    return &Metrics{
        Registry: reg,
    }
}

// Register registers a prometheus collector
func (m *Metrics) Register(collector prometheus.Collector) error {
    return m.Registry.Register(collector)
}
