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
	"sort"
	"sync"

	"github.com/pingcap/actox/pkg/actor"
	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/pingcap/actox/pkg/eventloop"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Factory creates the actor of a spawn. It is called from the actor's own
// goroutine, ctx is canceled when the pool is closed and mb is the mailbox
// the actor is going to receive from.
type Factory[T any] func(ctx context.Context, mb actor.Mailbox[T]) (actor.Actor[T], error)

// Pool is a registry of named actors, each running in its own goroutine.
type Pool struct {
	opts   poolOptions
	ctx    context.Context
	cancel context.CancelFunc
	eg     errgroup.Group
	nextID atomic.Uint64

	mu     sync.Mutex
	closed bool
	actors map[string]entry
	// reserved holds names of actors that are starting.
	reserved map[string]struct{}

	errMu    sync.Mutex
	closeErr error
}

// New creates a Pool.
func New(opts ...Option) *Pool {
	o := defaultPoolOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		opts:     o,
		ctx:      ctx,
		cancel:   cancel,
		actors:   make(map[string]entry),
		reserved: make(map[string]struct{}),
	}
}

// SpawnSync starts an actor and waits until it has been created and
// registered. Lookup succeeds right after SpawnSync returns.
// If ctx is done first, the actor may still start later.
func SpawnSync[T any](
	ctx context.Context, p *Pool, name string, factory Factory[T], opts ...SpawnOption,
) (*Handle[T], error) {
	h, started, err := spawn(p, name, factory, false, opts)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, errors.Trace(ctx.Err())
	case err := <-started:
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// SpawnAsync starts an actor without waiting for it. The name is taken
// right away, the actor becomes visible to Lookup once it is created.
// Failures after SpawnAsync returns are logged and passed to the handler
// set by WithSpawnErrorHandler.
func SpawnAsync[T any](p *Pool, name string, factory Factory[T], opts ...SpawnOption) error {
	_, _, err := spawn(p, name, factory, true, opts)
	return err
}

func spawn[T any](
	p *Pool, name string, factory Factory[T], async bool, opts []SpawnOption,
) (*Handle[T], <-chan error, error) {
	o := spawnOptions{
		mailboxSize: p.opts.mailboxSize,
		batchSize:   p.opts.batchSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.sources) > 0 {
		o.aggOpts = append([]eventloop.Option{eventloop.WithPollBackoff(p.opts.pollBackoff)}, o.aggOpts...)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, cerrors.ErrActorPoolClosed.GenWithStackByArgs()
	}
	if _, ok := p.actors[name]; ok {
		return nil, nil, cerrors.ErrActorNameCollision.GenWithStackByArgs(name)
	}
	if _, ok := p.reserved[name]; ok {
		return nil, nil, cerrors.ErrActorNameCollision.GenWithStackByArgs(name)
	}
	p.reserved[name] = struct{}{}

	h := newHandle[T](name, actor.NewMailbox[T](actor.ID(p.nextID.Inc()), o.mailboxSize))
	started := make(chan error, 1)
	// Go is called with mu held, Close can not start waiting in between.
	p.eg.Go(func() error {
		runActor(p, h, factory, o, async, started)
		return nil
	})
	return h, started, nil
}

func runActor[T any](
	p *Pool, h *Handle[T], factory Factory[T], o spawnOptions, async bool, started chan<- error,
) {
	a, agg, err := createActor(p.ctx, h, factory, o)
	if err == nil {
		err = p.register(h)
	} else {
		p.unreserve(h.name)
	}
	if err != nil {
		if agg != nil {
			agg.Shutdown()
		}
		if closer, ok := a.(actor.Closer); ok {
			_ = closer.Close(context.Background())
		}
		h.mb.Close()
		h.setDead()
		h.finish(err)
		spawnFailures.WithLabelValues(p.opts.name).Inc()
		log.Warn("spawn actor failed",
			zap.String("pool", p.opts.name),
			zap.String("name", h.name),
			zap.Bool("async", async),
			zap.Error(err))
		started <- err
		if async && p.opts.onSpawnError != nil {
			p.opts.onSpawnError(h.name, err)
		}
		return
	}
	log.Info("actor spawned",
		zap.String("pool", p.opts.name),
		zap.String("name", h.name),
		zap.Uint64("id", uint64(h.ID())),
		zap.Int("sources", len(o.sources)))

	runner := actor.NewRunner[T](h.name, h.mb, a, o.batchSize)
	// The calling goroutine holds the group, Go can not race with Wait.
	p.eg.Go(func() error {
		<-runner.Ready()
		started <- nil
		return nil
	})
	err = dropCanceled(runner.Run(p.ctx))

	// Nobody receives from the mailbox any more. Hide the actor before
	// waiting for its sources, a blocking source may take long to return.
	h.setDead()
	p.unregister(h)
	h.mb.Close()
	if agg != nil {
		agg.Shutdown()
	}
	if err != nil && p.ctx.Err() != nil {
		p.appendCloseErr(err)
	}
	h.finish(err)
	log.Info("actor stopped",
		zap.String("pool", p.opts.name),
		zap.String("name", h.name),
		zap.Error(err))
}

func createActor[T any](
	ctx context.Context, h *Handle[T], factory Factory[T], o spawnOptions,
) (actor.Actor[T], *eventloop.Aggregator[T], error) {
	a, err := factory(ctx, h.mb)
	if err == nil && a == nil {
		err = errors.New("factory returned a nil actor")
	}
	if err != nil {
		return nil, nil, cerrors.WrapError(cerrors.ErrActorSpawnFailed, err, h.name)
	}
	if len(o.sources) == 0 {
		return a, nil, nil
	}
	agg := eventloop.NewAggregator[T](h.name, h.mb, o.aggOpts...)
	for _, src := range o.sources {
		if err := agg.Register(src); err != nil {
			return a, agg, cerrors.WrapError(cerrors.ErrActorSpawnFailed, err, h.name)
		}
	}
	return a, agg, nil
}

// register makes a started actor visible.
func (p *Pool) register(e entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reserved, e.Name())
	if p.closed {
		return cerrors.ErrActorPoolClosed.GenWithStackByArgs()
	}
	e.setAlive()
	p.actors[e.Name()] = e
	registeredActors.WithLabelValues(p.opts.name).Inc()
	return nil
}

func (p *Pool) unreserve(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reserved, name)
}

// unregister removes e if it is still the registered actor of its name.
func (p *Pool) unregister(e entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.actors[e.Name()]; ok && cur == e {
		delete(p.actors, e.Name())
		registeredActors.WithLabelValues(p.opts.name).Dec()
	}
}

func (p *Pool) appendCloseErr(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	p.closeErr = multierr.Append(p.closeErr, err)
}

// Lookup returns the handle of a running actor.
func Lookup[T any](p *Pool, name string) (*Handle[T], error) {
	p.mu.Lock()
	e, ok := p.actors[name]
	p.mu.Unlock()
	if !ok {
		return nil, cerrors.ErrActorNotFound.GenWithStackByArgs(name)
	}
	h, ok := e.(*Handle[T])
	if !ok {
		return nil, cerrors.ErrActorTypeMismatch.GenWithStackByArgs(name, e.messageType(), typeName[T]())
	}
	if !h.Alive() {
		return nil, cerrors.ErrActorNotFound.GenWithStackByArgs(name)
	}
	return h, nil
}

// Send looks up an actor and sends v to it without blocking.
func Send[T any](p *Pool, name string, v T) error {
	h, err := Lookup[T](p, name)
	if err != nil {
		return err
	}
	return h.Send(v)
}

// Deregister removes an actor from the pool and closes its mailbox. The
// actor handles the messages already queued and then stops.
func (p *Pool) Deregister(name string) error {
	p.mu.Lock()
	e, ok := p.actors[name]
	if ok {
		delete(p.actors, name)
		registeredActors.WithLabelValues(p.opts.name).Dec()
	}
	p.mu.Unlock()
	if !ok {
		return cerrors.ErrActorNotFound.GenWithStackByArgs(name)
	}
	e.closeMailbox()
	log.Info("actor deregistered",
		zap.String("pool", p.opts.name), zap.String("name", name))
	return nil
}

// Names returns the names of the registered actors, sorted.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.actors))
	for name := range p.actors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops all actors and waits for their goroutines to exit. It returns
// the errors of actors that failed to stop cleanly.
// Close is idempotent, spawning after Close fails with ErrActorPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	first := !p.closed
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	_ = p.eg.Wait()
	if first {
		registeredActors.DeleteLabelValues(p.opts.name)
		spawnFailures.DeleteLabelValues(p.opts.name)
		log.Info("actor pool closed", zap.String("pool", p.opts.name))
	}

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.closeErr
}

// dropCanceled removes context.Canceled from a combined error.
func dropCanceled(err error) error {
	var kept []error
	for _, e := range multierr.Errors(err) {
		if errors.Cause(e) != context.Canceled {
			kept = append(kept, e)
		}
	}
	return multierr.Combine(kept...)
}
