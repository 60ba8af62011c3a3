// Copyright 2021 PingCAP, Inc.
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

package actor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runningActors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "actox",
			Subsystem: "actor",
			Name:      "number_of_running_actors",
			Help:      "The number of actors whose worker goroutine is running.",
		})
	handledMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actox",
			Subsystem: "actor",
			Name:      "handled_messages_total",
			Help:      "Total number of messages handled by an actor.",
		}, []string{"name"})
	workingDuration = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actox",
			Subsystem: "actor",
			Name:      "poll_cpu_seconds_total",
			Help:      "Total time spent in Poll in seconds.",
		}, []string{"name"})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(runningActors)
	registry.MustRegister(handledMessages)
	registry.MustRegister(workingDuration)
}
