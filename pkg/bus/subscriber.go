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
	"context"
	"sync"
	"time"

	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

// SubscriberID is unique within the process.
type SubscriberID uint64

var lastSubscriberID atomic.Uint64

// Subscriber is the receiving end of topic subscriptions. Any number of
// dispatchers and topics may write to it, it is read by its owner.
type Subscriber[M any] struct {
	id SubscriberID
	ch chan M

	// mu guards closing ch, writers hold the read lock.
	mu        sync.RWMutex
	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once

	dropped atomic.Uint64
}

// NewSubscriber creates a subscriber that queues up to backlog messages.
// A full subscriber loses the messages published by Dispatcher.Publish.
func NewSubscriber[M any](backlog int) *Subscriber[M] {
	if backlog < 0 {
		backlog = 0
	}
	return &Subscriber[M]{
		id:      SubscriberID(lastSubscriberID.Inc()),
		ch:      make(chan M, backlog),
		closeCh: make(chan struct{}),
	}
}

// ID returns the unique ID of the subscriber.
func (s *Subscriber[M]) ID() SubscriberID {
	return s.id
}

// C returns the message channel. It is closed after Close once the queued
// messages are consumed.
func (s *Subscriber[M]) C() <-chan M {
	return s.ch
}

// Read blocks until a message arrives. It returns ErrSubscriberClosed once
// the subscriber is closed and drained.
func (s *Subscriber[M]) Read(ctx context.Context) (M, error) {
	select {
	case <-ctx.Done():
		var zero M
		return zero, errors.Trace(ctx.Err())
	case msg, ok := <-s.ch:
		if !ok {
			return msg, cerrors.ErrSubscriberClosed.GenWithStackByArgs(s.id)
		}
		return msg, nil
	}
}

// TryRead returns a queued message without blocking.
func (s *Subscriber[M]) TryRead() (M, bool) {
	select {
	case msg, ok := <-s.ch:
		return msg, ok
	default:
		var zero M
		return zero, false
	}
}

// ReadTimeout waits at most d for a message.
func (s *Subscriber[M]) ReadTimeout(d time.Duration) (M, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case msg, ok := <-s.ch:
		return msg, ok
	case <-timer.C:
		var zero M
		return zero, false
	}
}

// Len returns the number of queued messages.
func (s *Subscriber[M]) Len() int {
	return len(s.ch)
}

// Dropped returns the number of messages lost because the queue was full.
func (s *Subscriber[M]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close closes the subscriber. Dispatchers stop writing to it and remove it
// from their topics lazily. Close is idempotent.
func (s *Subscriber[M]) Close() {
	s.closeOnce.Do(func() {
		// Wake up blocked writers first, they hold the read lock.
		close(s.closeCh)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// Closed reports whether Close has been called.
func (s *Subscriber[M]) Closed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

type writeResult int

const (
	written writeResult = iota
	full
	closed
)

func (s *Subscriber[M]) tryWrite(msg M) writeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return closed
	}
	select {
	case s.ch <- msg:
		return written
	default:
		s.dropped.Inc()
		return full
	}
}

func (s *Subscriber[M]) write(ctx context.Context, msg M) (writeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return closed, nil
	}
	select {
	case <-ctx.Done():
		return full, errors.Trace(ctx.Err())
	case <-s.closeCh:
		return closed, nil
	case s.ch <- msg:
		return written, nil
	}
}
