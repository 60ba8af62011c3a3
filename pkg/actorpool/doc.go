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

// Package actorpool keeps long-lived actors by name.
//
// Every actor runs in its own goroutine driven by an actor.Runner. Callers
// find an actor with Lookup and talk to it through its Handle. An actor may
// own event sources, the pool then merges their events into the actor's
// mailbox with an eventloop.Aggregator.
//
// A name is unique within a pool. It is taken as soon as a spawn is
// accepted and released when the actor stops or is deregistered.
package actorpool
