// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package eventloop

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registeredSources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "actox",
			Subsystem: "eventloop",
			Name:      "registered_sources",
			Help:      "The number of live event sources of an aggregator.",
		}, []string{"aggregator"})
	deliveredEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actox",
			Subsystem: "eventloop",
			Name:      "delivered_events_total",
			Help:      "Total number of events delivered to the sink of an aggregator.",
		}, []string{"aggregator"})
	sourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actox",
			Subsystem: "eventloop",
			Name:      "source_errors_total",
			Help:      "Total number of errors reported by event sources.",
		}, []string{"aggregator"})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(registeredSources)
	registry.MustRegister(deliveredEvents)
	registry.MustRegister(sourceErrors)
}
