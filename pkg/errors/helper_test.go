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

package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	var (
		rfcError  = ErrSourceFailed
		err       = errors.New("test")
		testCases = []struct {
			err      error
			isNil    bool
			expected string
			args     []interface{}
		}{
			{nil, true, "", []interface{}{}},
			{err, false, "[ACTOX:ErrSourceFailed]event source dns failed: test", []interface{}{"dns"}},
		}
	)
	for _, tc := range testCases {
		we := WrapError(rfcError, tc.err, tc.args...)
		if tc.isNil {
			require.Nil(t, we)
		} else {
			require.NotNil(t, we)
			require.Equal(t, tc.expected, we.Error())
		}
	}
}

func TestIs(t *testing.T) {
	t.Parallel()

	err := ErrActorNotFound.GenWithStackByArgs("a")
	require.True(t, Is(err, ErrActorNotFound))
	require.False(t, Is(err, ErrActorDead))
	require.True(t, Is(errors.Trace(err), ErrActorNotFound))
	require.True(t, Is(errors.Annotate(err, "lookup"), ErrActorNotFound))
	require.True(t, Is(fmt.Errorf("wrapped: %w", err), ErrActorNotFound))

	wrapped := WrapError(ErrActorSpawnFailed, ErrSourceKindUnknown.GenWithStackByArgs("plain"), "a")
	require.True(t, Is(wrapped, ErrActorSpawnFailed))
	require.True(t, Is(wrapped, ErrSourceKindUnknown))

	require.False(t, Is(nil, ErrActorNotFound))
	require.False(t, Is(context.Canceled, ErrActorNotFound))
}

func TestErrorClasses(t *testing.T) {
	t.Parallel()

	require.True(t, IsRetryableError(ErrMailboxFull.FastGenByArgs()))
	require.Equal(t, "[ACTOX:ErrMailboxFull]mailbox is full, retry later or use a blocking send",
		ErrMailboxFull.FastGenByArgs().Error())
	require.False(t, IsRetryableError(ErrMailboxClosed.FastGenByArgs(1)))

	for _, err := range []error{
		ErrSourceAlreadyRegistered.GenWithStackByArgs("dns"),
		ErrActorNameCollision.GenWithStackByArgs("a"),
		ErrAlreadySubscribed.GenWithStackByArgs(1, "t"),
	} {
		require.True(t, IsStructuralError(err), "%v", err)
	}
	require.False(t, IsStructuralError(ErrSourceFailed.GenWithStackByArgs("dns")))
	require.False(t, IsStructuralError(errors.New("other")))
}
