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

package eventloop

import (
	"context"
	stdErrors "errors"

	"github.com/pingcap/actox/pkg/actor/message"
)

// Source is an event source. Its name identifies it within an Aggregator
// and is attached to every event it produces.
type Source interface {
	Name() string
}

// BlockingSource is a source whose only way to produce an event is a call
// that occupies the calling goroutine until an event is ready.
type BlockingSource[T any] interface {
	Source
	// Wait blocks until an event is ready and returns it.
	//
	// It may return ok == false with a nil error if nothing happened, e.g.
	// an internal timeout expired. Returning from time to time lets the
	// aggregator observe shutdown; ctx is canceled on shutdown and should be
	// honored where possible.
	//
	// A non-nil error is delivered as an error event. Wrap it with Permanent
	// to stop the source.
	Wait(ctx context.Context) (event T, ok bool, err error)
}

// PollingSource is a source that offers a non-blocking check.
type PollingSource[T any] interface {
	Source
	// Poll returns an event if one is available, otherwise ok == false.
	//
	// Poll must not block: all polling sources of an aggregator share one
	// goroutine, no other source is polled until it returns.
	//
	// A non-nil error is delivered as an error event. Wrap it with Permanent
	// to remove the source from the rotation.
	Poll(ctx context.Context) (event T, ok bool, err error)
}

// Sink receives the aggregated events. actor.Mailbox implements Sink.
type Sink[T any] interface {
	// SendB sends a message, blocks when the sink is full.
	SendB(ctx context.Context, msg message.Message[T]) error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as a permanent failure of a source. The source is
// deregistered after the error is delivered.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked by Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return stdErrors.As(err, &p)
}
