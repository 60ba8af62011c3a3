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

package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/pingcap/actox/pkg/actor/message"
	"github.com/pingcap/actox/pkg/logutil"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultBatchSize is the maximum number of messages passed to one Poll.
const DefaultBatchSize = 1

// Runner drives an Actor. It owns the receiving side of the actor's mailbox
// and polls the actor from a single goroutine.
type Runner[T any] struct {
	name      string
	mb        Mailbox[T]
	actor     Actor[T]
	batchSize int

	ready      chan struct{}
	alreadyRun atomic.Bool
}

// NewRunner returns a new Runner. A non-positive batchSize means
// DefaultBatchSize.
func NewRunner[T any](name string, mb Mailbox[T], a Actor[T], batchSize int) *Runner[T] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Runner[T]{
		name:      name,
		mb:        mb,
		actor:     a,
		batchSize: batchSize,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the runner starts receiving messages.
func (r *Runner[T]) Ready() <-chan struct{} {
	return r.ready
}

// Run polls the actor until
//   - the actor returns false from Poll,
//   - a stop message is received,
//   - the mailbox is closed and drained, or
//   - ctx is canceled, in which case the ctx error is returned.
//
// Run must be called at most once.
func (r *Runner[T]) Run(ctx context.Context) error {
	if r.alreadyRun.Swap(true) {
		panic(fmt.Sprintf("duplicate calls to Run: %s", r.name))
	}

	runningActors.Inc()
	defer runningActors.Dec()
	log.Debug("actor started", zap.String("name", r.name), zap.Uint64("id", uint64(r.mb.ID())))

	close(r.ready)
	err := r.doRun(ctx)

	if closer, ok := r.actor.(Closer); ok {
		if closeErr := closer.Close(context.Background()); closeErr != nil {
			log.Warn("closing actor returned error",
				zap.String("name", r.name), zap.Error(closeErr))
			err = multierr.Append(err, errors.Trace(closeErr))
		}
	}
	handledMessages.DeleteLabelValues(r.name)
	workingDuration.DeleteLabelValues(r.name)
	log.Debug("actor stopped", zap.String("name", r.name),
		logutil.ZapErrorFilter(err, context.Canceled))
	return err
}

func (r *Runner[T]) doRun(ctx context.Context) error {
	handled := handledMessages.WithLabelValues(r.name)
	working := workingDuration.WithLabelValues(r.name)

	batch := make([]message.Message[T], 0, r.batchSize)
	for {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		msg, ok, err := r.mb.receiveB(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		if !ok {
			// Mailbox is closed and drained.
			return nil
		}
		if msg.Tp == message.TypeStop {
			return nil
		}

		batch = append(batch[:0], msg)
		stop := false
		for len(batch) < r.batchSize {
			msg, ok := r.mb.Receive()
			if !ok {
				break
			}
			if msg.Tp == message.TypeStop {
				stop = true
				break
			}
			batch = append(batch, msg)
		}

		start := time.Now()
		running := r.actor.Poll(ctx, batch)
		working.Add(time.Since(start).Seconds())
		handled.Add(float64(len(batch)))

		// Release references held by the batch.
		for i := range batch {
			batch[i] = message.Message[T]{}
		}
		if !running || stop {
			return nil
		}
	}
}
