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
	"context"
	"sync"

	"github.com/eapache/queue"
	"github.com/pingcap/actox/pkg/actor/message"
	cerrors "github.com/pingcap/actox/pkg/errors"
)

var errMailboxFull = cerrors.ErrMailboxFull.FastGenByArgs()

// ID is ID for actors.
type ID uint64

// Actor is a universal primitive of concurrent computation.
// See more https://en.wikipedia.org/wiki/Actor_model
type Actor[T any] interface {
	// Poll handles messages that are sent to actor's mailbox.
	//
	// The ctx is only for cancellation, and an actor must be aware of
	// the cancellation.
	//
	// If it returns true, then the actor will be polled again once more
	// messages arrive.
	// If it returns false, then the actor stops and the messages left in
	// its mailbox are discarded.
	//
	// Poll is never called concurrently for the same actor.
	Poll(ctx context.Context, msgs []message.Message[T]) (running bool)
}

// Closer is an optional interface of Actor. Close is called exactly once
// after the actor stops, whatever the reason.
type Closer interface {
	Close(ctx context.Context) error
}

// HandlerFunc adapts a function handling one message at a time to Actor.
type HandlerFunc[T any] func(ctx context.Context, msg message.Message[T]) (running bool)

// Poll implements Actor. Messages after the one that stopped the handler
// are discarded.
func (f HandlerFunc[T]) Poll(ctx context.Context, msgs []message.Message[T]) bool {
	for i := range msgs {
		if !f(ctx, msgs[i]) {
			return false
		}
	}
	return true
}

// Mailbox sends messages to an actor.
// Mailbox is threadsafe.
type Mailbox[T any] interface {
	ID() ID
	// Send a message to its actor.
	// It's a non-blocking send, returns ErrMailboxFull when it's full.
	Send(msg message.Message[T]) error
	// SendB sends a message to its actor, blocks when it's full.
	// It may return context.Canceled or context.DeadlineExceeded.
	SendB(ctx context.Context, msg message.Message[T]) error
	// Close closes the mailbox. Sends after Close fail with ErrMailboxClosed,
	// messages already queued are still delivered to the actor.
	// Close is idempotent.
	Close()

	// Receive tries to receive a message.
	// It must be nonblocking and should only be called by the actor's Runner.
	Receive() (message.Message[T], bool)
	// receiveB receives a message, blocks when the mailbox is empty.
	// It returns false if the mailbox is closed and drained.
	receiveB(ctx context.Context) (message.Message[T], bool, error)
	// Return the length of a mailbox.
	len() int
}

// NewMailbox creates a mailbox. A positive cap creates a fixed capacity
// mailbox, otherwise the mailbox is unbounded.
func NewMailbox[T any](id ID, cap int) Mailbox[T] {
	if cap <= 0 {
		return &unboundedMailbox[T]{
			id:     id,
			q:      queue.New(),
			notify: make(chan struct{}, 1),
		}
	}
	return &mailbox[T]{
		id:      id,
		ch:      make(chan message.Message[T], cap),
		closeCh: make(chan struct{}),
	}
}

var (
	_ Mailbox[int] = (*mailbox[int])(nil)
	_ Mailbox[int] = (*unboundedMailbox[int])(nil)
)

type mailbox[T any] struct {
	id ID
	ch chan message.Message[T]

	// mu guards closing ch, senders hold the read lock.
	mu        sync.RWMutex
	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (m *mailbox[T]) ID() ID {
	return m.id
}

func (m *mailbox[T]) Send(msg message.Message[T]) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return cerrors.ErrMailboxClosed.GenWithStackByArgs(m.id)
	}
	select {
	case m.ch <- msg:
		return nil
	default:
		return errMailboxFull
	}
}

func (m *mailbox[T]) SendB(ctx context.Context, msg message.Message[T]) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return cerrors.ErrMailboxClosed.GenWithStackByArgs(m.id)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.closeCh:
		return cerrors.ErrMailboxClosed.GenWithStackByArgs(m.id)
	case m.ch <- msg:
		return nil
	}
}

func (m *mailbox[T]) Close() {
	m.closeOnce.Do(func() {
		// Wake up blocked SendB first, they hold the read lock.
		close(m.closeCh)
		m.mu.Lock()
		m.closed = true
		close(m.ch)
		m.mu.Unlock()
	})
}

func (m *mailbox[T]) Receive() (message.Message[T], bool) {
	select {
	case msg, ok := <-m.ch:
		return msg, ok
	default:
	}
	return message.Message[T]{}, false
}

func (m *mailbox[T]) receiveB(ctx context.Context) (message.Message[T], bool, error) {
	select {
	case <-ctx.Done():
		return message.Message[T]{}, false, ctx.Err()
	case msg, ok := <-m.ch:
		return msg, ok, nil
	}
}

func (m *mailbox[T]) len() int {
	return len(m.ch)
}

// unboundedMailbox never rejects a message unless it's closed.
type unboundedMailbox[T any] struct {
	id ID

	mu     sync.Mutex
	q      *queue.Queue
	closed bool

	notify chan struct{}
}

func (m *unboundedMailbox[T]) ID() ID {
	return m.id
}

func (m *unboundedMailbox[T]) Send(msg message.Message[T]) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return cerrors.ErrMailboxClosed.GenWithStackByArgs(m.id)
	}
	m.q.Add(msg)
	m.mu.Unlock()
	m.wake()
	return nil
}

func (m *unboundedMailbox[T]) SendB(ctx context.Context, msg message.Message[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Send(msg)
}

func (m *unboundedMailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wake()
}

func (m *unboundedMailbox[T]) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *unboundedMailbox[T]) Receive() (message.Message[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.q.Length() == 0 {
		return message.Message[T]{}, false
	}
	return m.q.Remove().(message.Message[T]), true
}

func (m *unboundedMailbox[T]) receiveB(ctx context.Context) (message.Message[T], bool, error) {
	for {
		if msg, ok := m.Receive(); ok {
			return msg, true, nil
		}
		m.mu.Lock()
		drained := m.closed && m.q.Length() == 0
		m.mu.Unlock()
		if drained {
			return message.Message[T]{}, false, nil
		}
		select {
		case <-ctx.Done():
			return message.Message[T]{}, false, ctx.Err()
		case <-m.notify:
		}
	}
}

func (m *unboundedMailbox[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}
