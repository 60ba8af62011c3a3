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

package util

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pingcap/actox/pkg/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestStrictDecodeValidFile(t *testing.T) {
	dataDir := t.TempDir()
	configPath := filepath.Join(dataDir, "actox.toml")
	configContent := `
mailbox-size = 64
batch-size = 8
poll-backoff = "50ms"
subscriber-backlog = 16

[log]
level = "debug"
`
	require.Nil(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg := config.GetDefaultConfig()
	require.Nil(t, StrictDecodeFile(configPath, "actox", cfg))
	require.Equal(t, 64, cfg.MailboxSize)
	require.Equal(t, 8, cfg.BatchSize)
	require.Equal(t, config.TomlDuration(50*time.Millisecond), cfg.PollBackoff)
	require.Equal(t, 16, cfg.SubscriberBacklog)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Nil(t, cfg.ValidateAndAdjust())
}

func TestStrictDecodeInvalidFile(t *testing.T) {
	dataDir := t.TempDir()
	configPath := filepath.Join(dataDir, "actox.toml")
	configContent := `
mailbox-size = 64
unknown = "x"

[log]
level = "info"
unknown2 = 1

[stress]
topics = 2
`
	require.Nil(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg := config.GetDefaultConfig()
	err := StrictDecodeFile(configPath, "actox", cfg)
	require.ErrorContains(t, err, "contained unknown configuration options: unknown, log.unknown2")
	require.ErrorContains(t, err, "stress.topics")

	cfg = config.GetDefaultConfig()
	err = StrictDecodeFile(configPath, "actox", cfg, "unknown", "log", "stress")
	require.Nil(t, err)
	require.Equal(t, 64, cfg.MailboxSize)

	err = StrictDecodeFile(filepath.Join(dataDir, "missing.toml"), "actox", cfg)
	require.Error(t, err)
}

func TestJSONPrint(t *testing.T) {
	cmd := new(cobra.Command)
	var b bytes.Buffer
	cmd.SetOut(&b)

	require.Nil(t, JSONPrint(cmd, map[string]int{"published": 3}))
	require.Equal(t, "{\n  \"published\": 3\n}\n", b.String())
}
