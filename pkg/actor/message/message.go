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

import "fmt"

// Type is the type of Message
type Type int

// types of Message
const (
	TypeUnknown Type = iota
	// TypeValue carries a user value, either sent directly to a mailbox or
	// produced by an event source.
	TypeValue
	// TypeStop asks the receiving actor to stop after the messages queued
	// before it have been handled.
	TypeStop
	// TypeError carries a failure reported by an event source.
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeValue:
		return "value"
	case TypeStop:
		return "stop"
	case TypeError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is a vehicle for transferring information between nodes and actors.
// It's designed to be passed by value to save memory allocation.
type Message[T any] struct {
	// Tp is the type of Message
	Tp Type
	// Value of the message. Only meaningful when Tp is TypeValue.
	Value T
	// Source is the name of the event source that produced the message.
	// It is empty for messages sent directly to a mailbox.
	Source string
	// Err is the error reported by Source. Only set when Tp is TypeError.
	Err error
}

// ValueMessage creates a message that contains a value.
func ValueMessage[T any](v T) Message[T] {
	return Message[T]{
		Tp:    TypeValue,
		Value: v,
	}
}

// SourceMessage creates a message that contains a value produced by the
// named event source.
func SourceMessage[T any](source string, v T) Message[T] {
	return Message[T]{
		Tp:     TypeValue,
		Value:  v,
		Source: source,
	}
}

// ErrorMessage creates a message that reports a failure of the named
// event source.
func ErrorMessage[T any](source string, err error) Message[T] {
	return Message[T]{
		Tp:     TypeError,
		Source: source,
		Err:    err,
	}
}

// StopMessage creates a message that stops an actor.
func StopMessage[T any]() Message[T] {
	return Message[T]{
		Tp: TypeStop,
	}
}

func (m Message[T]) String() string {
	switch m.Tp {
	case TypeValue:
		return fmt.Sprintf("{%s %v %s}", m.Tp, m.Value, m.Source)
	case TypeError:
		return fmt.Sprintf("{%s %s %v}", m.Tp, m.Source, m.Err)
	default:
		return fmt.Sprintf("{%s}", m.Tp)
	}
}
