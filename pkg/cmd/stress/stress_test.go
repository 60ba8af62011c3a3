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
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pingcap/actox/pkg/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newTestWorkload() *workload {
	cfg := config.GetDefaultConfig()
	cfg.PollBackoff = config.TomlDuration(5 * time.Millisecond)
	return &workload{
		cfg:            cfg,
		topics:         3,
		subscribers:    2,
		rate:           500,
		reportInterval: 50 * time.Millisecond,
	}
}

func TestWorkloadDeliversInOrder(t *testing.T) {
	w := newTestWorkload()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	report, err := w.run(ctx)
	require.Nil(t, err)
	require.Equal(t, 3, report.Topics)
	require.Equal(t, 2, report.Subscribers)
	require.Greater(t, report.Published, uint64(0))
	// Every publish either reaches or misses each subscriber.
	require.Equal(t, report.Published*2, report.Delivered+report.Dropped)
	require.Equal(t, report.Delivered, report.Received)
	require.Equal(t, uint64(0), report.Dropped)
	require.Equal(t, uint64(0), report.OutOfOrder)
}

func TestWorkloadDropsForSmallBacklog(t *testing.T) {
	w := newTestWorkload()
	w.rate = 0
	w.cfg.SubscriberBacklog = 0
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	report, err := w.run(ctx)
	require.Nil(t, err)
	require.Equal(t, report.Published*2, report.Delivered+report.Dropped)
	require.Equal(t, report.Delivered, report.Received)
	require.Equal(t, uint64(0), report.OutOfOrder)
}

func TestPublisherMailboxSize(t *testing.T) {
	w := newTestWorkload()
	require.Equal(t, 0, w.publisherMailboxSize())

	// An unlimited rate must not grow an unbounded mailbox.
	w.rate = 0
	require.Equal(t, unlimitedRateMailboxSize, w.publisherMailboxSize())

	w.cfg.MailboxSize = 16
	require.Equal(t, 16, w.publisherMailboxSize())
	w.rate = 100
	require.Equal(t, 16, w.publisherMailboxSize())
}

func TestWorkloadServesMetrics(t *testing.T) {
	w := newTestWorkload()
	w.metricsAddr = "127.0.0.1:0"
	w.metricsListening = make(chan net.Addr, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		report *Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := w.run(ctx)
		done <- result{report: report, err: err}
	}()

	addr := <-w.metricsListening
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	var body string
	require.Eventually(t, func() bool {
		resp, err := client.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return strings.Contains(body, `actox_bus_published_messages_total{dispatcher="stress"}`)
	}, 5*time.Second, 20*time.Millisecond)
	require.Contains(t, body, "actox_actor_pool_registered_actors")

	cancel()
	res := <-done
	require.Nil(t, res.err)
	require.Equal(t, uint64(0), res.report.OutOfOrder)
}

func TestCompleteOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "actox.toml")
	require.Nil(t, os.WriteFile(path, []byte(`
mailbox-size = 128
batch-size = 16
subscriber-backlog = 32
[log]
level = "warn"
`), 0o644))

	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{
		"--config", path, "--batch-size", "4", "--topics", "2", "--duration", "1s",
	}))
	require.Nil(t, o.complete(cmd))
	require.Equal(t, 128, o.cfg.MailboxSize)
	// Flags take precedence over the config file.
	require.Equal(t, 4, o.cfg.BatchSize)
	require.Equal(t, 32, o.cfg.SubscriberBacklog)
	require.Equal(t, "warn", o.cfg.Log.Level)
	require.Equal(t, 2, o.topics)
	require.Equal(t, time.Second, o.duration)

	cmd = new(cobra.Command)
	o = newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--topics", "0"}))
	require.ErrorContains(t, o.complete(cmd), "topics must be positive")

	cmd = new(cobra.Command)
	o = newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--batch-size", "100000"}))
	require.ErrorContains(t, o.complete(cmd), "batch-size is larger than 4096")
}

func TestPrintReport(t *testing.T) {
	cmd := new(cobra.Command)
	var b bytes.Buffer
	cmd.SetOut(&b)

	printReport(cmd, &Report{
		Topics:      2,
		Subscribers: 3,
		Elapsed:     2 * time.Second,
		Published:   12345,
		Delivered:   37035,
		Received:    37035,
	})
	out := b.String()
	require.Contains(t, out, "topics: 2, subscribers: 3, elapsed: 2s")
	require.Contains(t, out, "published:    12,345 (6.2 k/s)")
	require.Contains(t, out, "dropped:      0")
}
