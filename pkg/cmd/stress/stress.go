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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pingcap/actox/pkg/cmd/util"
	"github.com/pingcap/actox/pkg/config"
	"github.com/pingcap/actox/pkg/version"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options defines flags for the `stress` command.
type options struct {
	configFilePath string
	cfg            *config.Config

	topics         int
	subscribers    int
	rate           int
	duration       time.Duration
	reportInterval time.Duration
	metricsAddr    string
	json           bool
}

func newOptions() *options {
	return &options{
		cfg: config.GetDefaultConfig(),
	}
}

func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
	cmd.Flags().StringVar(&o.cfg.Log.File, "log-file", o.cfg.Log.File, "log file path")
	cmd.Flags().StringVar(&o.cfg.Log.Level, "log-level", o.cfg.Log.Level, "log level (etc: debug|info|warn|error)")
	cmd.Flags().IntVar(&o.cfg.MailboxSize, "mailbox-size", o.cfg.MailboxSize, "mailbox capacity of every actor, 0 means unbounded")
	cmd.Flags().IntVar(&o.cfg.BatchSize, "batch-size", o.cfg.BatchSize, "maximum number of messages handled per poll")
	cmd.Flags().IntVar(&o.cfg.SubscriberBacklog, "subscriber-backlog", o.cfg.SubscriberBacklog, "queue length of every subscriber")

	cmd.Flags().IntVar(&o.topics, "topics", 4, "number of topics, each served by one publisher actor")
	cmd.Flags().IntVar(&o.subscribers, "subscribers", 4, "number of subscribers, each subscribed to every topic")
	cmd.Flags().IntVar(&o.rate, "rate", 1000, "events per second per topic, 0 means unlimited and bounds an unbounded mailbox to 1024 messages")
	cmd.Flags().DurationVar(&o.duration, "duration", 10*time.Second, "how long to publish")
	cmd.Flags().DurationVar(&o.reportInterval, "report-interval", time.Second, "interval of publisher progress logs")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. 127.0.0.1:9090")
	cmd.Flags().BoolVar(&o.json, "json", false, "print the report in JSON format")
}

// complete adapts from the command line args and config file to the data required.
func (o *options) complete(cmd *cobra.Command) error {
	cfg := config.GetDefaultConfig()
	if len(o.configFilePath) > 0 {
		if err := util.StrictDecodeFile(o.configFilePath, "actox stress", cfg); err != nil {
			return err
		}
	}

	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "log-file":
			cfg.Log.File = o.cfg.Log.File
		case "log-level":
			cfg.Log.Level = o.cfg.Log.Level
		case "mailbox-size":
			cfg.MailboxSize = o.cfg.MailboxSize
		case "batch-size":
			cfg.BatchSize = o.cfg.BatchSize
		case "subscriber-backlog":
			cfg.SubscriberBacklog = o.cfg.SubscriberBacklog
		case "config", "topics", "subscribers", "rate", "duration",
			"report-interval", "metrics-addr", "json":
			// do nothing
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})

	if err := cfg.ValidateAndAdjust(); err != nil {
		return errors.Trace(err)
	}
	if o.topics <= 0 || o.subscribers < 0 || o.rate < 0 {
		return errors.New("topics must be positive, subscribers and rate must not be negative")
	}
	if o.duration <= 0 || o.reportInterval <= 0 {
		return errors.New("duration and report-interval must be positive")
	}
	o.cfg = cfg
	return nil
}

func (o *options) run(cmd *cobra.Command) error {
	ctx, cancel := util.InitCmd(cmd, o.cfg.Log)
	defer cancel()
	version.LogVersionInfo("actox stress")
	log.Info("actox stress", zap.Stringer("config", o.cfg))

	w := &workload{
		cfg:            o.cfg,
		topics:         o.topics,
		subscribers:    o.subscribers,
		rate:           o.rate,
		reportInterval: o.reportInterval,
		metricsAddr:    o.metricsAddr,
	}
	wctx, wcancel := context.WithTimeout(ctx, o.duration)
	defer wcancel()
	done := make(chan struct{})
	util.InitSignalHandling(func() <-chan struct{} {
		wcancel()
		return done
	}, cancel)

	report, err := w.run(wctx)
	close(done)
	if err != nil {
		log.Error("stress workload failed", zap.Error(err))
		return errors.Trace(err)
	}
	log.Info("stress workload finished", zap.Any("report", report))

	if o.json {
		return util.JSONPrint(cmd, report)
	}
	printReport(cmd, report)
	return nil
}

func printReport(cmd *cobra.Command, r *Report) {
	rate := func(n uint64) string {
		secs := r.Elapsed.Seconds()
		if secs <= 0 {
			return "-"
		}
		return humanize.SIWithDigits(float64(n)/secs, 1, "/s")
	}
	cmd.Printf("topics: %d, subscribers: %d, elapsed: %s\n", r.Topics, r.Subscribers, r.Elapsed.Round(time.Millisecond))
	cmd.Printf("published:    %s (%s)\n", humanize.Comma(int64(r.Published)), rate(r.Published))
	cmd.Printf("delivered:    %s (%s)\n", humanize.Comma(int64(r.Delivered)), rate(r.Delivered))
	cmd.Printf("received:     %s\n", humanize.Comma(int64(r.Received)))
	cmd.Printf("dropped:      %s\n", humanize.Comma(int64(r.Dropped)))
	cmd.Printf("out of order: %s\n", humanize.Comma(int64(r.OutOfOrder)))
}

// NewCmdStress creates the `stress` command.
func NewCmdStress() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "stress",
		Short: "Publish events through actors and topics and report the throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := o.complete(cmd)
			if err != nil {
				return err
			}
			err = o.run(cmd)
			util.CheckErr(err)
			return nil
		},
	}

	o.addFlags(command)

	return command
}
