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
	"sort"
	"sync"

	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	name string
}

// WithName sets the dispatcher name used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Dispatcher fans messages published to a topic out to the subscribers of
// the topic.
type Dispatcher[M any] struct {
	name string

	mu     sync.RWMutex
	topics map[string]map[SubscriberID]*Subscriber[M]

	published prometheus.Counter
	delivered prometheus.Counter
	dropped   prometheus.Counter
}

// New creates a Dispatcher.
func New[M any](opts ...Option) *Dispatcher[M] {
	o := options{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher[M]{
		name:      o.name,
		topics:    make(map[string]map[SubscriberID]*Subscriber[M]),
		published: publishedMessages.WithLabelValues(o.name),
		delivered: deliveredMessages.WithLabelValues(o.name),
		dropped:   droppedMessages.WithLabelValues(o.name),
	}
}

// Topics returns the topics with at least one subscription, sorted.
func (d *Dispatcher[M]) Topics() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	topics := make([]string, 0, len(d.topics))
	for topic := range d.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Subscribe adds s to topic. A subscriber may subscribe to many topics.
func (d *Dispatcher[M]) Subscribe(topic string, s *Subscriber[M]) error {
	if s.Closed() {
		return cerrors.ErrSubscriberClosed.GenWithStackByArgs(s.ID())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	subscribers, ok := d.topics[topic]
	if !ok {
		subscribers = make(map[SubscriberID]*Subscriber[M])
		d.topics[topic] = subscribers
	}
	if _, ok := subscribers[s.ID()]; ok {
		return cerrors.ErrAlreadySubscribed.GenWithStackByArgs(s.ID(), topic)
	}
	subscribers[s.ID()] = s
	return nil
}

// Unsubscribe removes s from topic. It is a no-op if s is not subscribed.
func (d *Dispatcher[M]) Unsubscribe(topic string, s *Subscriber[M]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(topic, s.ID())
}

// UnsubscribeAll removes s from every topic.
func (d *Dispatcher[M]) UnsubscribeAll(s *Subscriber[M]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for topic := range d.topics {
		d.removeLocked(topic, s.ID())
	}
}

func (d *Dispatcher[M]) removeLocked(topic string, id SubscriberID) {
	subscribers, ok := d.topics[topic]
	if !ok {
		return
	}
	delete(subscribers, id)
	if len(subscribers) == 0 {
		delete(d.topics, topic)
	}
}

func (d *Dispatcher[M]) snapshot(topic string) []*Subscriber[M] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	subscribers := d.topics[topic]
	if len(subscribers) == 0 {
		return nil
	}
	snap := make([]*Subscriber[M], 0, len(subscribers))
	for _, s := range subscribers {
		snap = append(snap, s)
	}
	return snap
}

// Publish sends msg to every current subscriber of topic and returns how
// many of them received it. Publish never blocks: a subscriber whose queue
// is full misses the message. Publishing to a topic without subscribers is
// not an error.
//
// Subscribers added while Publish runs may not receive msg.
func (d *Dispatcher[M]) Publish(topic string, msg M) int {
	d.published.Inc()
	reached := 0
	var gone []SubscriberID
	for _, s := range d.snapshot(topic) {
		switch s.tryWrite(msg) {
		case written:
			reached++
		case full:
			d.dropped.Inc()
		case closed:
			gone = append(gone, s.ID())
		}
	}
	d.delivered.Add(float64(reached))
	d.prune(topic, gone)
	return reached
}

// PublishB is like Publish but waits while a subscriber's queue is full.
// It returns the number of subscribers reached before ctx is done.
func (d *Dispatcher[M]) PublishB(ctx context.Context, topic string, msg M) (int, error) {
	d.published.Inc()
	reached := 0
	var gone []SubscriberID
	defer func() {
		d.delivered.Add(float64(reached))
		d.prune(topic, gone)
	}()
	for _, s := range d.snapshot(topic) {
		res, err := s.write(ctx, msg)
		if err != nil {
			return reached, err
		}
		switch res {
		case written:
			reached++
		case closed:
			gone = append(gone, s.ID())
		}
	}
	return reached, nil
}

// prune removes closed subscribers found by a publish.
func (d *Dispatcher[M]) prune(topic string, gone []SubscriberID) {
	if len(gone) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range gone {
		d.removeLocked(topic, id)
	}
	log.Debug("closed subscribers removed",
		zap.String("dispatcher", d.name),
		zap.String("topic", topic),
		zap.Int("count", len(gone)))
}

// ShrinkToFit removes all closed subscribers and releases the memory held
// by deleted entries. It holds the write lock for the whole pass.
func (d *Dispatcher[M]) ShrinkToFit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	topics := make(map[string]map[SubscriberID]*Subscriber[M], len(d.topics))
	removed := 0
	for topic, subscribers := range d.topics {
		live := make(map[SubscriberID]*Subscriber[M], len(subscribers))
		for id, s := range subscribers {
			if s.Closed() {
				removed++
				continue
			}
			live[id] = s
		}
		if len(live) > 0 {
			topics[topic] = live
		}
	}
	d.topics = topics
	log.Info("topic dispatcher shrunk",
		zap.String("dispatcher", d.name),
		zap.Int("topics", len(topics)),
		zap.Int("removedSubscribers", removed))
}
