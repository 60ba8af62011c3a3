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

package actorpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registeredActors = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "actox",
			Subsystem: "actor_pool",
			Name:      "registered_actors",
			Help:      "The number of actors registered in a pool.",
		}, []string{"pool"})
	spawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actox",
			Subsystem: "actor_pool",
			Name:      "spawn_failures_total",
			Help:      "Total number of actors that failed to start.",
		}, []string{"pool"})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(registeredActors)
	registry.MustRegister(spawnFailures)
}
