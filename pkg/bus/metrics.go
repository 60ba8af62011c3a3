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

package bus

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	publishedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actox",
			Subsystem: "bus",
			Name:      "published_messages_total",
			Help:      "Total number of publish calls.",
		}, []string{"dispatcher"})
	deliveredMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actox",
			Subsystem: "bus",
			Name:      "delivered_messages_total",
			Help:      "Total number of messages queued to a subscriber.",
		}, []string{"dispatcher"})
	droppedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actox",
			Subsystem: "bus",
			Name:      "dropped_messages_total",
			Help:      "Total number of messages lost to a full subscriber.",
		}, []string{"dispatcher"})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(publishedMessages)
	registry.MustRegister(deliveredMessages)
	registry.MustRegister(droppedMessages)
}
