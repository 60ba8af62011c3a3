// Copyright 2021 PingCAP, Inc.
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

// Package actor provides the building blocks of an actor: a Mailbox and a
// Runner that polls one Actor from one goroutine.
//
// The following diagram shows how a runner polls an actor.
//
//	,------.          ,-------.          ,------.          ,-----.
//	|Sender|          |Mailbox|          |Runner|          |Actor|
//	`--+---'          `---+---'          `--+---'          `--+--'
//	   |   Send(msg)      |                 |                 |
//	   | ---------------->|                 |                 |
//	   |                  |   receiveB()    |                 |
//	   |                  |<----------------|                 |
//	   |                  |   return msg    |                 |
//	   |                  |---------------->|                 |
//	   |                  |                 |                 |
//	   |                  |   Receive()     |                 |
//	   |                  |<----------------|                 |
//	   |                  |  (batch rest)   |                 |
//	   |                  |---------------->|                 |
//	   |                  |                 |   Poll(msgs)    |
//	   |                  |                 | --------------->|
//	   |                  |                 |  running bool   |
//	   |                  |                 |<--------------- |
//	,--+---.          ,---+---.          ,--+---.          ,--+--.
//	|Sender|          |Mailbox|          |Runner|          |Actor|
//	`------'          `-------'          `------'          `-----'
//
// A mailbox has many senders and exactly one receiver, the runner. Closing
// the mailbox plays the role of the last sender going away: the runner
// drains what is left and stops.
package actor
