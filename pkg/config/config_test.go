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
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	cerrors "github.com/pingcap/actox/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecodeTOML(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultConfig()
	_, err := toml.Decode(`
mailbox-size = 64
batch-size = 16
poll-backoff = "250ms"

[log]
level = "debug"
file = "/tmp/actox/actox.log"
`, cfg)
	require.Nil(t, err)
	require.Nil(t, cfg.ValidateAndAdjust())

	require.Equal(t, 64, cfg.MailboxSize)
	require.Equal(t, 16, cfg.BatchSize)
	require.Equal(t, 250*time.Millisecond, time.Duration(cfg.PollBackoff))
	require.Equal(t, DefaultSubscriberBacklog, cfg.SubscriberBacklog)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "/tmp/actox/actox.log", cfg.Log.File)

	// The default config is not modified by decoding into a copy.
	require.Equal(t, DefaultBatchSize, GetDefaultConfig().BatchSize)
	require.Equal(t, "info", GetDefaultConfig().Log.Level)
}

func TestValidateAndAdjust(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	require.Nil(t, cfg.ValidateAndAdjust())
	require.Equal(t, GetDefaultConfig(), cfg)

	testCases := []struct {
		cfg    Config
		errMsg string
	}{
		{Config{MailboxSize: -1}, "mailbox-size must not be negative"},
		{Config{BatchSize: maxBatchSize + 1}, "batch-size is larger than 4096"},
		{Config{PollBackoff: TomlDuration(-time.Second)}, "poll-backoff must be positive"},
		{Config{PollBackoff: TomlDuration(time.Minute)}, "poll-backoff is larger than 10s"},
	}
	for _, tc := range testCases {
		cfg := tc.cfg
		err := cfg.ValidateAndAdjust()
		require.True(t, cerrors.Is(err, cerrors.ErrInvalidConfig), "%v", err)
		require.ErrorContains(t, err, tc.errMsg)
	}
}

func TestTomlDuration(t *testing.T) {
	t.Parallel()

	var d TomlDuration
	require.Nil(t, d.UnmarshalText([]byte("1m30s")))
	require.Equal(t, 90*time.Second, time.Duration(d))
	require.NotNil(t, d.UnmarshalText([]byte("forever")))

	data, err := json.Marshal(GetDefaultConfig())
	require.Nil(t, err)
	require.Contains(t, string(data), `"poll-backoff":"100ms"`)

	var cfg Config
	require.Nil(t, json.Unmarshal(data, &cfg))
	require.Equal(t, GetDefaultConfig(), &cfg)
	require.Equal(t, string(data), cfg.String())
}
