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

// Package bus implements an in-process topic based publish/subscribe bus.
//
// Messages of one topic reach a subscriber in the order a single goroutine
// published them. Messages of different topics, or of goroutines racing on
// the same topic, interleave in an unspecified order. Messages are not kept
// for subscribers that subscribe later.
package bus
