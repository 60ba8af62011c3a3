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

package stress

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pingcap/actox/pkg/actor"
	"github.com/pingcap/actox/pkg/actor/message"
	"github.com/pingcap/actox/pkg/actorpool"
	"github.com/pingcap/actox/pkg/bus"
	"github.com/pingcap/actox/pkg/config"
	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/pingcap/actox/pkg/eventloop"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// event is produced by the sources of a publisher actor.
type event struct {
	Topic string
	Seq   uint64
	// Progress marks a progress tick, it is not published.
	Progress bool
}

// rateSource produces events for one topic at a fixed rate.
type rateSource struct {
	name    string
	topic   string
	limiter ratelimit.Limiter
	seq     uint64
}

func newRateSource(topic string, rate int) *rateSource {
	limiter := ratelimit.NewUnlimited()
	if rate > 0 {
		limiter = ratelimit.New(rate)
	}
	return &rateSource{
		name:    "rate-" + topic,
		topic:   topic,
		limiter: limiter,
	}
}

func (s *rateSource) Name() string {
	return s.name
}

func (s *rateSource) Wait(ctx context.Context) (event, bool, error) {
	s.limiter.Take()
	if ctx.Err() != nil {
		return event{}, false, nil
	}
	s.seq++
	return event{Topic: s.topic, Seq: s.seq}, true, nil
}

// progressSource ticks once per interval.
type progressSource struct {
	name     string
	interval time.Duration
	last     time.Time
}

func (s *progressSource) Name() string {
	return s.name
}

func (s *progressSource) Poll(ctx context.Context) (event, bool, error) {
	now := time.Now()
	if now.Sub(s.last) < s.interval {
		return event{}, false, nil
	}
	s.last = now
	return event{Progress: true}, true, nil
}

// publisher forwards the events of its sources to the dispatcher.
type publisher struct {
	name       string
	dispatcher *bus.Dispatcher[event]
	stats      *stats
	published  uint64
}

func (p *publisher) Poll(ctx context.Context, msgs []message.Message[event]) bool {
	for _, msg := range msgs {
		switch msg.Tp {
		case message.TypeValue:
			if msg.Value.Progress {
				log.Info("stress publisher progress",
					zap.String("actor", p.name),
					zap.Uint64("published", p.published))
				continue
			}
			reached := p.dispatcher.Publish(msg.Value.Topic, msg.Value)
			p.published++
			p.stats.published.Inc()
			p.stats.delivered.Add(uint64(reached))
		case message.TypeError:
			log.Warn("stress source failed",
				zap.String("actor", p.name),
				zap.String("source", msg.Source),
				zap.Error(msg.Err))
		}
	}
	return true
}

func (p *publisher) Close(ctx context.Context) error {
	log.Info("stress publisher stopped",
		zap.String("actor", p.name),
		zap.Uint64("published", p.published))
	return nil
}

type stats struct {
	published  atomic.Uint64
	delivered  atomic.Uint64
	received   atomic.Uint64
	outOfOrder atomic.Uint64
}

// Report summarizes a stress run.
type Report struct {
	Topics      int           `json:"topics"`
	Subscribers int           `json:"subscribers"`
	Elapsed     time.Duration `json:"elapsed"`
	Published   uint64        `json:"published"`
	Delivered   uint64        `json:"delivered"`
	Received    uint64        `json:"received"`
	Dropped     uint64        `json:"dropped"`
	OutOfOrder  uint64        `json:"out-of-order"`
}

// workload publishes events to a number of topics from one actor per topic
// and reads them back with subscribers subscribed to every topic.
type workload struct {
	cfg            *config.Config
	topics         int
	subscribers    int
	rate           int
	reportInterval time.Duration
	metricsAddr    string

	// metricsListening receives the address of the metrics server.
	metricsListening chan net.Addr
}

func (w *workload) run(ctx context.Context) (*Report, error) {
	registry := prometheus.NewRegistry()
	actor.InitMetrics(registry)
	eventloop.InitMetrics(registry)
	actorpool.InitMetrics(registry)
	bus.InitMetrics(registry)

	if w.metricsAddr != "" {
		srv, err := w.serveMetrics(registry)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := srv.Close(); err != nil {
				log.Warn("close metrics server failed", zap.Error(err))
			}
		}()
	}

	st := &stats{}
	dispatcher := bus.New[event](bus.WithName("stress"))
	subscribers := make([]*bus.Subscriber[event], 0, w.subscribers)
	for i := 0; i < w.subscribers; i++ {
		s := bus.NewSubscriber[event](w.cfg.SubscriberBacklog)
		for t := 0; t < w.topics; t++ {
			if err := dispatcher.Subscribe(topicName(t), s); err != nil {
				return nil, errors.Trace(err)
			}
		}
		subscribers = append(subscribers, s)
	}

	var consumers errgroup.Group
	for _, s := range subscribers {
		s := s
		consumers.Go(func() error {
			return consume(s, st)
		})
	}
	closeSubscribers := func() {
		for _, s := range subscribers {
			s.Close()
		}
	}

	pool := actorpool.New(
		actorpool.WithName("stress"),
		actorpool.WithConfig(w.cfg),
		actorpool.WithSpawnErrorHandler(func(name string, err error) {
			log.Warn("stress publisher failed to start", zap.String("actor", name), zap.Error(err))
		}))

	start := time.Now()
	var spawnErr error
	for t := 0; t < w.topics; t++ {
		topic := topicName(t)
		name := "publisher-" + topic
		factory := func(ctx context.Context, mb actor.Mailbox[event]) (actor.Actor[event], error) {
			return &publisher{name: name, dispatcher: dispatcher, stats: st}, nil
		}
		_, spawnErr = actorpool.SpawnSync[event](ctx, pool, name, factory,
			actorpool.WithMailboxSize(w.publisherMailboxSize()),
			actorpool.WithSources(
				newRateSource(topic, w.rate),
				&progressSource{name: "progress-" + topic, interval: w.reportInterval, last: start},
			))
		if spawnErr != nil {
			break
		}
	}
	if spawnErr == nil {
		log.Info("stress workload started",
			zap.Int("topics", w.topics),
			zap.Int("subscribers", w.subscribers),
			zap.Strings("actors", pool.Names()))
		<-ctx.Done()
	}

	// Publishers stop before subscribers are closed, so every delivered
	// event is received.
	err := pool.Close()
	elapsed := time.Since(start)
	closeSubscribers()
	if cerr := consumers.Wait(); cerr != nil && err == nil {
		err = cerr
	}
	if spawnErr != nil && errors.Cause(spawnErr) != context.Canceled {
		return nil, spawnErr
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	report := &Report{
		Topics:      w.topics,
		Subscribers: w.subscribers,
		Elapsed:     elapsed,
		Published:   st.published.Load(),
		Delivered:   st.delivered.Load(),
		Received:    st.received.Load(),
		OutOfOrder:  st.outOfOrder.Load(),
	}
	for _, s := range subscribers {
		report.Dropped += s.Dropped()
	}
	return report, nil
}

// unlimitedRateMailboxSize bounds the publisher mailbox when the rate is
// unlimited, the rate source then waits for the publisher.
const unlimitedRateMailboxSize = 1024

func (w *workload) publisherMailboxSize() int {
	if w.rate == 0 && w.cfg.MailboxSize <= 0 {
		return unlimitedRateMailboxSize
	}
	return w.cfg.MailboxSize
}

func consume(s *bus.Subscriber[event], st *stats) error {
	last := make(map[string]uint64)
	for {
		ev, err := s.Read(context.Background())
		if err != nil {
			if cerrors.Is(err, cerrors.ErrSubscriberClosed) {
				return nil
			}
			return errors.Trace(err)
		}
		st.received.Inc()
		if ev.Seq <= last[ev.Topic] {
			st.outOfOrder.Inc()
		}
		last[ev.Topic] = ev.Seq
	}
}

func (w *workload) serveMetrics(registry *prometheus.Registry) (*http.Server, error) {
	l, err := net.Listen("tcp", w.metricsAddr)
	if err != nil {
		return nil, errors.Annotate(err, "listen metrics address")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server exited", zap.Error(err))
		}
	}()
	log.Info("metrics server listening", zap.Stringer("addr", l.Addr()))
	if w.metricsListening != nil {
		w.metricsListening <- l.Addr()
	}
	return srv, nil
}

func topicName(i int) string {
	return fmt.Sprintf("topic-%d", i)
}
