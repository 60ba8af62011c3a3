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
	"fmt"
	"sync"
	"testing"
	"time"

	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestPublishFanOut(t *testing.T) {
	t.Parallel()

	d := New[string](WithName(t.Name()))
	s1, s2 := NewSubscriber[string](1024), NewSubscriber[string](1024)
	require.Nil(t, d.Subscribe("t", s1))
	require.Nil(t, d.Subscribe("t", s2))
	require.NotEqual(t, s1.ID(), s2.ID())

	require.Equal(t, 2, d.Publish("t", "msg"))
	for _, s := range []*Subscriber[string]{s1, s2} {
		msg, ok := s.ReadTimeout(time.Second)
		require.True(t, ok)
		require.Equal(t, "msg", msg)
	}

	// A topic without subscribers is not an error.
	require.Equal(t, 0, d.Publish("u", "msg"))
	_, ok := s1.TryRead()
	require.False(t, ok)

	d.Unsubscribe("t", s1)
	require.Equal(t, 1, d.Publish("t", "again"))
	_, ok = s1.ReadTimeout(10 * time.Millisecond)
	require.False(t, ok)
	msg, err := s2.Read(context.Background())
	require.Nil(t, err)
	require.Equal(t, "again", msg)

	// Unsubscribing twice is a no-op.
	d.Unsubscribe("t", s1)
	d.Unsubscribe("unknown", s1)
	require.Equal(t, []string{"t"}, d.Topics())
}

func TestSubscribeErrors(t *testing.T) {
	t.Parallel()

	d := New[int](WithName(t.Name()))
	s := NewSubscriber[int](1)
	require.Nil(t, d.Subscribe("a", s))
	require.Nil(t, d.Subscribe("b", s))
	err := d.Subscribe("a", s)
	require.True(t, cerrors.Is(err, cerrors.ErrAlreadySubscribed), "%v", err)
	require.ErrorContains(t, err, fmt.Sprintf("subscriber %d is already subscribed to topic a", s.ID()))

	s.Close()
	err = d.Subscribe("c", s)
	require.True(t, cerrors.Is(err, cerrors.ErrSubscriberClosed), "%v", err)
	require.Equal(t, []string{"a", "b"}, d.Topics())

	d.UnsubscribeAll(s)
	require.Empty(t, d.Topics())
}

func TestPublishDropsForFullSubscriber(t *testing.T) {
	t.Parallel()

	d := New[int](WithName(t.Name()))
	slow, fast := NewSubscriber[int](2), NewSubscriber[int](16)
	require.Nil(t, d.Subscribe("t", slow))
	require.Nil(t, d.Subscribe("t", fast))

	reached := 0
	for i := 0; i < 5; i++ {
		reached += d.Publish("t", i)
	}
	require.Equal(t, 7, reached)
	require.Equal(t, uint64(3), slow.Dropped())
	require.Equal(t, uint64(0), fast.Dropped())
	require.Equal(t, 2, slow.Len())
	require.Equal(t, 5, fast.Len())

	// The oldest messages are kept.
	for i := 0; i < 2; i++ {
		msg, ok := slow.TryRead()
		require.True(t, ok)
		require.Equal(t, i, msg)
	}
}

func TestPublishBWaitsForSpace(t *testing.T) {
	t.Parallel()

	d := New[int](WithName(t.Name()))
	s := NewSubscriber[int](1)
	require.Nil(t, d.Subscribe("t", s))
	require.Equal(t, 1, d.Publish("t", 0))

	done := make(chan int, 1)
	go func() {
		n, err := d.PublishB(context.Background(), "t", 1)
		require.Nil(t, err)
		done <- n
	}()
	select {
	case <-done:
		t.Fatal("PublishB must wait for space")
	case <-time.After(20 * time.Millisecond):
	}
	msg, ok := s.TryRead()
	require.True(t, ok)
	require.Equal(t, 0, msg)
	require.Equal(t, 1, <-done)
	msg, ok = s.ReadTimeout(time.Second)
	require.True(t, ok)
	require.Equal(t, 1, msg)

	// ctx bounds the wait.
	require.Equal(t, 1, d.Publish("t", 2))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	n, err := d.PublishB(ctx, "t", 3)
	require.Equal(t, 0, n)
	require.Equal(t, context.DeadlineExceeded, errors.Cause(err))

	// Closing the subscriber releases a blocked PublishB.
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Close()
	}()
	n, err = d.PublishB(context.Background(), "t", 4)
	require.Nil(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, d.Topics())
}

func TestClosedSubscriberIsPruned(t *testing.T) {
	t.Parallel()

	d := New[string](WithName(t.Name()))
	s1, s2 := NewSubscriber[string](4), NewSubscriber[string](4)
	require.Nil(t, d.Subscribe("t", s1))
	require.Nil(t, d.Subscribe("t", s2))
	require.Nil(t, d.Subscribe("only-s1", s1))

	require.Equal(t, 2, d.Publish("t", "before"))
	s1.Close()
	require.True(t, s1.Closed())
	// Close is idempotent.
	s1.Close()

	// Queued messages can still be read, then the subscriber reports
	// closed.
	msg, err := s1.Read(context.Background())
	require.Nil(t, err)
	require.Equal(t, "before", msg)
	_, err = s1.Read(context.Background())
	require.True(t, cerrors.Is(err, cerrors.ErrSubscriberClosed), "%v", err)
	_, ok := <-s1.C()
	require.False(t, ok)

	require.Equal(t, 1, d.Publish("t", "after"))
	require.Equal(t, []string{"only-s1", "t"}, d.Topics())

	d.ShrinkToFit()
	require.Equal(t, []string{"t"}, d.Topics())
	require.Equal(t, 1, d.Publish("t", "shrunk"))
}

func TestReadHonorsContext(t *testing.T) {
	t.Parallel()

	s := NewSubscriber[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Read(ctx)
	require.Equal(t, context.Canceled, errors.Cause(err))

	_, ok := s.ReadTimeout(time.Millisecond)
	require.False(t, ok)
}

// TestPublishStress publishes from many goroutines to many topics, every
// subscriber is subscribed to all topics and large enough to never drop.
func TestPublishStress(t *testing.T) {
	t.Parallel()

	const level = 12
	d := New[int](WithName(t.Name()))

	subscribers := make([]*Subscriber[int], level)
	for i := range subscribers {
		subscribers[i] = NewSubscriber[int](level * level * level)
		for topic := 0; topic < level; topic++ {
			require.Nil(t, d.Subscribe(fmt.Sprintf("topic-%d", topic), subscribers[i]))
		}
	}

	var wg sync.WaitGroup
	for p := 0; p < level; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < level; i++ {
				for topic := 0; topic < level; topic++ {
					// Encode publisher, topic and sequence number.
					d.Publish(fmt.Sprintf("topic-%d", topic), p*level*level+topic*level+i)
				}
			}
		}(p)
	}

	for _, s := range subscribers {
		wg.Add(1)
		go func(s *Subscriber[int]) {
			defer wg.Done()
			last := make(map[[2]int]int)
			for n := 0; n < level*level*level; n++ {
				msg, ok := s.ReadTimeout(10 * time.Second)
				require.True(t, ok)
				// Order is kept per publisher and topic.
				key := [2]int{msg / (level * level), msg / level % level}
				if prev, ok := last[key]; ok {
					require.Less(t, prev, msg)
				}
				last[key] = msg
			}
			require.Equal(t, uint64(0), s.Dropped())
		}(s)
	}
	wg.Wait()
}
