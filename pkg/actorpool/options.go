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
	"time"

	"github.com/pingcap/actox/pkg/actor"
	"github.com/pingcap/actox/pkg/config"
	"github.com/pingcap/actox/pkg/eventloop"
)

// Option configures a Pool.
type Option func(*poolOptions)

type poolOptions struct {
	name         string
	mailboxSize  int
	batchSize    int
	pollBackoff  time.Duration
	onSpawnError func(name string, err error)
}

func defaultPoolOptions() poolOptions {
	return poolOptions{
		name:        "default",
		mailboxSize: config.DefaultMailboxSize,
		batchSize:   actor.DefaultBatchSize,
		pollBackoff: eventloop.DefaultPollBackoff,
	}
}

// WithName sets the pool name used in logs and metrics.
func WithName(name string) Option {
	return func(o *poolOptions) {
		o.name = name
	}
}

// WithConfig takes the default mailbox size, batch size and polling backoff
// from cfg. cfg must have been validated.
func WithConfig(cfg *config.Config) Option {
	return func(o *poolOptions) {
		o.mailboxSize = cfg.MailboxSize
		o.batchSize = cfg.BatchSize
		o.pollBackoff = time.Duration(cfg.PollBackoff)
	}
}

// WithSpawnErrorHandler sets a callback for failures of SpawnAsync that are
// detected after SpawnAsync has returned. f is called from the goroutine
// that tried to start the actor.
func WithSpawnErrorHandler(f func(name string, err error)) Option {
	return func(o *poolOptions) {
		o.onSpawnError = f
	}
}

// SpawnOption configures a single actor.
type SpawnOption func(*spawnOptions)

type spawnOptions struct {
	mailboxSize int
	batchSize   int
	sources     []eventloop.Source
	aggOpts     []eventloop.Option
}

// WithMailboxSize sets the mailbox capacity, a non-positive size makes the
// mailbox unbounded.
func WithMailboxSize(size int) SpawnOption {
	return func(o *spawnOptions) {
		o.mailboxSize = size
	}
}

// WithBatchSize sets the maximum number of messages per Poll.
func WithBatchSize(size int) SpawnOption {
	return func(o *spawnOptions) {
		o.batchSize = size
	}
}

// WithSources attaches event sources to the actor. Their events are merged
// by an eventloop.Aggregator into the actor's mailbox, the aggregator is
// shut down when the actor stops.
func WithSources(srcs ...eventloop.Source) SpawnOption {
	return func(o *spawnOptions) {
		o.sources = append(o.sources, srcs...)
	}
}

// WithAggregatorOptions passes options to the aggregator created for
// WithSources.
func WithAggregatorOptions(opts ...eventloop.Option) SpawnOption {
	return func(o *spawnOptions) {
		o.aggOpts = append(o.aggOpts, opts...)
	}
}
