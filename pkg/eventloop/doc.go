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

// Package eventloop aggregates event sources into a single stream of
// messages.
//
// A BlockingSource gets a dedicated goroutine that calls Wait in a loop.
// All PollingSources of an Aggregator share one goroutine that probes them in
// round-robin order and sleeps for a short backoff after a rotation in which
// no source produced anything.
//
//	BlockingSource --Wait--> goroutine --\
//	BlockingSource --Wait--> goroutine ---+--SendB--> Sink (actor mailbox)
//	PollingSource  --\                   /
//	PollingSource  ---+--Poll--> poller-/
//
// Events of one source keep their order. Events of different sources
// interleave in an unspecified order.
package eventloop
