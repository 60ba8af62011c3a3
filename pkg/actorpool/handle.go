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
	"context"
	"reflect"

	"github.com/pingcap/actox/pkg/actor"
	"github.com/pingcap/actox/pkg/actor/message"
	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

// entry is the type-erased view of a Handle kept by the registry.
type entry interface {
	Name() string
	messageType() string
	setAlive()
	closeMailbox()
}

// Handle is the sending side of a spawned actor. It is safe for concurrent
// use and stays valid after the actor stops, sends then fail with
// ErrActorDead.
type Handle[T any] struct {
	name string
	mb   actor.Mailbox[T]

	alive atomic.Bool
	done  chan struct{}
	// err is written before done is closed.
	err error
}

func newHandle[T any](name string, mb actor.Mailbox[T]) *Handle[T] {
	return &Handle[T]{
		name: name,
		mb:   mb,
		done: make(chan struct{}),
	}
}

// Name returns the name of the actor.
func (h *Handle[T]) Name() string {
	return h.name
}

// ID returns the mailbox ID of the actor.
func (h *Handle[T]) ID() actor.ID {
	return h.mb.ID()
}

// Send sends v to the actor without blocking. It returns ErrMailboxFull if
// the mailbox is full.
func (h *Handle[T]) Send(v T) error {
	if !h.alive.Load() {
		return cerrors.ErrActorDead.GenWithStackByArgs(h.name)
	}
	return h.send(h.mb.Send(message.ValueMessage(v)))
}

// SendB sends v to the actor, blocks when the mailbox is full.
func (h *Handle[T]) SendB(ctx context.Context, v T) error {
	if !h.alive.Load() {
		return cerrors.ErrActorDead.GenWithStackByArgs(h.name)
	}
	return h.send(h.mb.SendB(ctx, message.ValueMessage(v)))
}

func (h *Handle[T]) send(err error) error {
	if err == nil {
		return nil
	}
	if !h.alive.Load() || cerrors.Is(err, cerrors.ErrMailboxClosed) {
		return cerrors.ErrActorDead.GenWithStackByArgs(h.name)
	}
	return errors.Trace(err)
}

// Stop asks the actor to stop after the messages already queued, and waits
// until it has stopped. Stopping a dead actor is a no-op.
func (h *Handle[T]) Stop(ctx context.Context) error {
	if h.alive.Load() {
		err := h.mb.SendB(ctx, message.StopMessage[T]())
		if err != nil && !cerrors.Is(err, cerrors.ErrMailboxClosed) {
			return errors.Trace(err)
		}
	}
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-h.done:
		return nil
	}
}

// Alive reports whether the actor is running. It turns false as soon as the
// actor stops handling messages, Done may be closed later.
func (h *Handle[T]) Alive() bool {
	return h.alive.Load()
}

// Done is closed after the actor has stopped.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Err returns the error the actor stopped with. It must only be called
// after Done is closed.
func (h *Handle[T]) Err() error {
	return h.err
}

func (h *Handle[T]) setAlive() {
	h.alive.Store(true)
}

// setDead makes sends fail with ErrActorDead.
func (h *Handle[T]) setDead() {
	h.alive.Store(false)
}

// finish records the stop error and closes done.
func (h *Handle[T]) finish(err error) {
	h.err = err
	close(h.done)
}

func (h *Handle[T]) messageType() string {
	return typeName[T]()
}

func (h *Handle[T]) closeMailbox() {
	h.mb.Close()
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
