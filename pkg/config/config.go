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

package config

import (
	"encoding/json"
	"fmt"
	"time"

	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/pingcap/actox/pkg/logutil"
	"github.com/pingcap/errors"
)

const (
	// DefaultMailboxSize is the mailbox capacity of a spawned actor, zero
	// means unbounded.
	DefaultMailboxSize = 0
	// DefaultBatchSize is the maximum number of messages per Poll.
	DefaultBatchSize = 1
	// DefaultPollBackoff is the sleep between idle polling rotations.
	DefaultPollBackoff = 100 * time.Millisecond
	// DefaultSubscriberBacklog is the queue limit of a bus subscriber.
	DefaultSubscriberBacklog = 1024

	maxBatchSize   = 4096
	maxPollBackoff = 10 * time.Second
)

// TomlDuration is a duration encoded as text, e.g. "100ms", in toml and json.
type TomlDuration time.Duration

// UnmarshalText is the toml decoder
func (d *TomlDuration) UnmarshalText(text []byte) error {
	stdDuration, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Trace(err)
	}
	*d = TomlDuration(stdDuration)
	return nil
}

// MarshalText is the toml encoder
func (d TomlDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config holds the tunables of actor pools, event aggregators and topic
// dispatchers.
type Config struct {
	// MailboxSize is the default mailbox capacity, zero means unbounded.
	MailboxSize int `toml:"mailbox-size" json:"mailbox-size"`
	// BatchSize is the default number of messages an actor handles per Poll.
	BatchSize int `toml:"batch-size" json:"batch-size"`
	// PollBackoff is how long the polling goroutine of an aggregator sleeps
	// after a rotation without events.
	PollBackoff TomlDuration `toml:"poll-backoff" json:"poll-backoff"`
	// SubscriberBacklog is the default queue limit of a subscriber.
	SubscriberBacklog int `toml:"subscriber-backlog" json:"subscriber-backlog"`

	Log *logutil.Config `toml:"log" json:"log"`
}

// read only
var defaultConfig = &Config{
	MailboxSize:       DefaultMailboxSize,
	BatchSize:         DefaultBatchSize,
	PollBackoff:       TomlDuration(DefaultPollBackoff),
	SubscriberBacklog: DefaultSubscriberBacklog,
	Log:               logutil.DefaultConfig(),
}

// GetDefaultConfig returns the default config.
func GetDefaultConfig() *Config {
	return defaultConfig.Clone()
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Log != nil {
		logCfg := *c.Log
		clone.Log = &logCfg
	}
	return &clone
}

// String implements fmt.Stringer.
func (c *Config) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%+v", *c)
	}
	return string(data)
}

// ValidateAndAdjust validates and adjusts the config. Unset fields get
// their default values.
func (c *Config) ValidateAndAdjust() error {
	if c.MailboxSize < 0 {
		return cerrors.ErrInvalidConfig.GenWithStackByArgs("mailbox-size must not be negative")
	}

	if c.BatchSize <= 0 {
		c.BatchSize = defaultConfig.BatchSize
	}
	if c.BatchSize > maxBatchSize {
		return cerrors.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("batch-size is larger than %d", maxBatchSize))
	}

	if c.PollBackoff == 0 {
		c.PollBackoff = defaultConfig.PollBackoff
	}
	if c.PollBackoff < 0 {
		return cerrors.ErrInvalidConfig.GenWithStackByArgs("poll-backoff must be positive")
	}
	if time.Duration(c.PollBackoff) > maxPollBackoff {
		return cerrors.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("poll-backoff is larger than %s", maxPollBackoff))
	}

	if c.SubscriberBacklog <= 0 {
		c.SubscriberBacklog = defaultConfig.SubscriberBacklog
	}

	if c.Log == nil {
		c.Log = logutil.DefaultConfig()
	}
	c.Log.Adjust()
	return nil
}
