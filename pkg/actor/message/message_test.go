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

package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageConstructors(t *testing.T) {
	t.Parallel()

	msg := ValueMessage(1)
	require.Equal(t, TypeValue, msg.Tp)
	require.Equal(t, 1, msg.Value)
	require.Empty(t, msg.Source)

	msg = SourceMessage("dns", 2)
	require.Equal(t, TypeValue, msg.Tp)
	require.Equal(t, "dns", msg.Source)

	err := errors.New("boom")
	msg = ErrorMessage[int]("dns", err)
	require.Equal(t, TypeError, msg.Tp)
	require.Equal(t, err, msg.Err)
	require.Equal(t, 0, msg.Value)

	require.Equal(t, TypeStop, StopMessage[string]().Tp)
	require.Equal(t, Message[int]{}, Message[int]{Tp: TypeUnknown})
}

func TestMessageString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "{value 1 dns}", SourceMessage("dns", 1).String())
	require.Equal(t, "{stop}", StopMessage[int]().String())
	require.Equal(t, "{error dns boom}", ErrorMessage[int]("dns", errors.New("boom")).String())
	require.Equal(t, "unknown", Type(42).String())
}
