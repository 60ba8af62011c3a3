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
	"github.com/pingcap/errors"
)

// errors
var (
	// event source registration related errors
	ErrSourceAlreadyRegistered = errors.Normalize(
		"event source %s is already registered",
		errors.RFCCodeText("ACTOX:ErrSourceAlreadyRegistered"),
	)
	ErrSourceKindUnknown = errors.Normalize(
		"event source %s is neither a blocking nor a polling source of the expected type",
		errors.RFCCodeText("ACTOX:ErrSourceKindUnknown"),
	)
	ErrAggregatorClosed = errors.Normalize(
		"event aggregator %s has been shut down",
		errors.RFCCodeText("ACTOX:ErrAggregatorClosed"),
	)
	// ErrSourceFailed is delivered inside the event stream when a source
	// reports an error while producing an event.
	ErrSourceFailed = errors.Normalize(
		"event source %s failed",
		errors.RFCCodeText("ACTOX:ErrSourceFailed"),
	)

	// actor pool related errors
	ErrActorNameCollision = errors.Normalize(
		"actor %s already exists",
		errors.RFCCodeText("ACTOX:ErrActorNameCollision"),
	)
	ErrActorSpawnFailed = errors.Normalize(
		"spawn actor %s failed",
		errors.RFCCodeText("ACTOX:ErrActorSpawnFailed"),
	)
	ErrActorPoolClosed = errors.Normalize(
		"actor pool has been closed",
		errors.RFCCodeText("ACTOX:ErrActorPoolClosed"),
	)
	ErrActorNotFound = errors.Normalize(
		"actor %s not found",
		errors.RFCCodeText("ACTOX:ErrActorNotFound"),
	)
	ErrActorTypeMismatch = errors.Normalize(
		"actor %s accepts messages of type %s, not %s",
		errors.RFCCodeText("ACTOX:ErrActorTypeMismatch"),
	)
	ErrActorDead = errors.Normalize(
		"actor %s is not alive",
		errors.RFCCodeText("ACTOX:ErrActorDead"),
	)

	// mailbox related errors
	ErrMailboxFull = errors.Normalize(
		"mailbox is full, retry later or use a blocking send",
		errors.RFCCodeText("ACTOX:ErrMailboxFull"),
	)
	ErrMailboxClosed = errors.Normalize(
		"mailbox %d has been closed",
		errors.RFCCodeText("ACTOX:ErrMailboxClosed"),
	)

	// topic dispatcher related errors
	ErrAlreadySubscribed = errors.Normalize(
		"subscriber %d is already subscribed to topic %s",
		errors.RFCCodeText("ACTOX:ErrAlreadySubscribed"),
	)
	ErrSubscriberClosed = errors.Normalize(
		"subscriber %d has been closed",
		errors.RFCCodeText("ACTOX:ErrSubscriberClosed"),
	)

	// configuration related errors
	ErrInvalidConfig = errors.Normalize(
		"invalid config: %s",
		errors.RFCCodeText("ACTOX:ErrInvalidConfig"),
	)
)
