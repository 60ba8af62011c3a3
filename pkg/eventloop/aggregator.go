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
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edwingeng/deque"
	"github.com/pingcap/actox/pkg/actor/message"
	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPollBackoff is how long the polling goroutine sleeps after a
// rotation in which no polling source produced anything.
const DefaultPollBackoff = 100 * time.Millisecond

type sourceKind int

const (
	kindBlocking sourceKind = iota + 1
	kindPolling
)

func (k sourceKind) String() string {
	if k == kindBlocking {
		return "blocking"
	}
	return "polling"
}

// Option configures an Aggregator.
type Option func(*options)

type options struct {
	pollBackoff time.Duration
	clk         clock.Clock
}

// WithPollBackoff sets the sleep between idle polling rotations.
func WithPollBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollBackoff = d
		}
	}
}

// WithClock sets the clock used for the polling backoff.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clk = clk
	}
}

// Aggregator merges the events of its sources into one Sink.
type Aggregator[T any] struct {
	name string
	out  Sink[T]
	opts options

	ctx    context.Context
	cancel context.CancelFunc
	eg     errgroup.Group

	mu      sync.Mutex
	closed  bool
	sources map[string]sourceKind
	// rotation holds the polling sources in round-robin order.
	rotation      deque.Deque
	pollerStarted bool
	// pollNotify wakes up an idle poller when a polling source is added.
	pollNotify chan struct{}

	shutdownOnce sync.Once
}

// NewAggregator creates an Aggregator that sends every event to out.
// Goroutines are started by Register and stopped by Shutdown.
func NewAggregator[T any](name string, out Sink[T], opts ...Option) *Aggregator[T] {
	o := options{
		pollBackoff: DefaultPollBackoff,
		clk:         clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator[T]{
		name:       name,
		out:        out,
		opts:       o,
		ctx:        ctx,
		cancel:     cancel,
		sources:    make(map[string]sourceKind),
		rotation:   deque.NewDeque(),
		pollNotify: make(chan struct{}, 1),
	}
}

// Register adds a source. A BlockingSource gets its own goroutine, a
// PollingSource joins the polling rotation. A source implementing both
// interfaces is treated as blocking.
func (a *Aggregator[T]) Register(src Source) error {
	name := src.Name()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.ctx.Err() != nil {
		return cerrors.ErrAggregatorClosed.GenWithStackByArgs(a.name)
	}
	if _, ok := a.sources[name]; ok {
		return cerrors.ErrSourceAlreadyRegistered.GenWithStackByArgs(name)
	}

	switch s := src.(type) {
	case BlockingSource[T]:
		a.sources[name] = kindBlocking
		a.eg.Go(func() error {
			a.runBlocking(s)
			return nil
		})
	case PollingSource[T]:
		a.sources[name] = kindPolling
		a.rotation.PushBack(s)
		if !a.pollerStarted {
			a.pollerStarted = true
			a.eg.Go(func() error {
				a.runPolling()
				return nil
			})
		}
		select {
		case a.pollNotify <- struct{}{}:
		default:
		}
	default:
		return cerrors.ErrSourceKindUnknown.GenWithStackByArgs(name)
	}
	registeredSources.WithLabelValues(a.name).Inc()
	log.Debug("event source registered",
		zap.String("aggregator", a.name),
		zap.String("source", name),
		zap.Stringer("kind", a.sources[name]))
	return nil
}

// Sources returns the names of the live sources, sorted.
func (a *Aggregator[T]) Sources() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.sources))
	for name := range a.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of live sources.
func (a *Aggregator[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sources)
}

// Shutdown stops all goroutines and waits for them to exit. A goroutine
// blocked in BlockingSource.Wait exits once Wait returns.
// Shutdown is idempotent.
func (a *Aggregator[T]) Shutdown() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	_ = a.eg.Wait()

	a.shutdownOnce.Do(func() {
		registeredSources.DeleteLabelValues(a.name)
		deliveredEvents.DeleteLabelValues(a.name)
		sourceErrors.DeleteLabelValues(a.name)
		log.Info("event aggregator shut down", zap.String("aggregator", a.name))
	})
}

func (a *Aggregator[T]) deregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deregisterLocked(name)
}

func (a *Aggregator[T]) deregisterLocked(name string) {
	if _, ok := a.sources[name]; ok {
		delete(a.sources, name)
		registeredSources.WithLabelValues(a.name).Dec()
	}
}

// emit sends msg to the sink. It returns false if the aggregator must stop.
func (a *Aggregator[T]) emit(msg message.Message[T]) bool {
	if err := a.out.SendB(a.ctx, msg); err != nil {
		if cerrors.Is(err, cerrors.ErrMailboxClosed) {
			log.Debug("event sink closed, stop all sources",
				zap.String("aggregator", a.name),
				zap.String("source", msg.Source))
			a.cancel()
		} else if errors.Cause(err) != context.Canceled {
			// The sink failed, nobody consumes our events any more.
			log.Warn("event aggregator failed to deliver event, stop all sources",
				zap.String("aggregator", a.name),
				zap.String("source", msg.Source),
				zap.Error(err))
			a.cancel()
		}
		return false
	}
	deliveredEvents.WithLabelValues(a.name).Inc()
	return true
}

// handleSourceError delivers err as an error event. It returns whether the
// event was delivered and whether the source must stop.
func (a *Aggregator[T]) handleSourceError(name string, err error) (delivered, stop bool) {
	sourceErrors.WithLabelValues(a.name).Inc()
	permanent := IsPermanent(err)
	log.Warn("event source failed",
		zap.String("aggregator", a.name),
		zap.String("source", name),
		zap.Bool("permanent", permanent),
		zap.Error(err))
	delivered = a.emit(message.ErrorMessage[T](name,
		cerrors.WrapError(cerrors.ErrSourceFailed, err, name)))
	if permanent {
		log.Info("event source deregistered after permanent failure",
			zap.String("aggregator", a.name), zap.String("source", name))
	}
	return delivered, permanent
}

func (a *Aggregator[T]) runBlocking(src BlockingSource[T]) {
	name := src.Name()
	defer a.deregister(name)

	for a.ctx.Err() == nil {
		event, ok, err := src.Wait(a.ctx)
		if err != nil {
			delivered, stop := a.handleSourceError(name, err)
			if !delivered || stop {
				return
			}
			continue
		}
		if !ok {
			continue
		}
		if !a.emit(message.SourceMessage(name, event)) {
			return
		}
	}
}

func (a *Aggregator[T]) rotationLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rotation.Len()
}

func (a *Aggregator[T]) popPolling() PollingSource[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rotation.PopFront().(PollingSource[T])
}

func (a *Aggregator[T]) pushPolling(src PollingSource[T]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rotation.PushBack(src)
}

// runPolling probes the polling sources in round-robin order. Only this
// goroutine pops from the rotation, Register pushes to its back, so sources
// added during a rotation are probed in the next one.
func (a *Aggregator[T]) runPolling() {
	defer func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		for !a.rotation.Empty() {
			a.deregisterLocked(a.rotation.PopFront().(PollingSource[T]).Name())
		}
	}()

	for a.ctx.Err() == nil {
		hadEvent := false
		for n := a.rotationLen(); n > 0; n-- {
			src := a.popPolling()
			event, ok, err := src.Poll(a.ctx)
			delivered, stop := true, false
			switch {
			case err != nil:
				hadEvent = true
				delivered, stop = a.handleSourceError(src.Name(), err)
			case ok:
				hadEvent = true
				delivered = a.emit(message.SourceMessage(src.Name(), event))
			}
			if stop {
				a.deregister(src.Name())
			} else {
				a.pushPolling(src)
			}
			if !delivered {
				return
			}
		}

		if hadEvent {
			continue
		}
		timer := a.opts.clk.Timer(a.opts.pollBackoff)
		select {
		case <-a.ctx.Done():
		case <-timer.C:
		case <-a.pollNotify:
		}
		timer.Stop()
	}
}
