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

// WrapError generates a new error based on given `*errors.Error`, wraps the err
// as cause error.
// If given `err` is nil, returns a nil error, which a the different behavior
// against `Wrap` function in pingcap/errors.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByArgs(args...)
}

// Is reports whether any error in err's chain is a normalized error with the
// same RFC code as target.
func Is(err error, target *errors.Error) bool {
	for err != nil {
		if e, ok := err.(*errors.Error); ok && e.RFCCode() == target.RFCCode() {
			return true
		}
		next := unwrapOnce(err)
		if next == err {
			return false
		}
		err = next
	}
	return false
}

func unwrapOnce(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		return e.Cause()
	}
	return nil
}

// IsRetryableError checks the error is safe to retry or not.
// A full mailbox is the only transient condition in this module.
func IsRetryableError(err error) bool {
	return Is(err, ErrMailboxFull)
}

// IsStructuralError reports whether err was caused by a caller mistake such
// as a duplicate registration or an unknown name. Such errors are never
// delivered through an event stream.
func IsStructuralError(err error) bool {
	for _, target := range []*errors.Error{
		ErrSourceAlreadyRegistered,
		ErrSourceKindUnknown,
		ErrActorNameCollision,
		ErrActorNotFound,
		ErrActorTypeMismatch,
		ErrAlreadySubscribed,
	} {
		if Is(err, target) {
			return true
		}
	}
	return false
}
