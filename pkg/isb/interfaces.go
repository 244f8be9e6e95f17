/*
Copyright 2023 The Dataradiant Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package isb defines the buffer abstractions between the pipeline stages. A
stage reads a chunk of messages from the previous stage, processes it, and
acknowledges back that processing is done. Unacknowledged messages are
redelivered, which is what gives the pipeline its at-least-once semantics.
*/

package isb

import (
	"context"
	"io"
	"math"
)

const PendingNotAvailable = int64(math.MinInt64)

// BufferWriter is the buffer to which we are writing.
type BufferWriter interface {
	io.Closer
	// GetName returns the name.
	GetName() string
	Write(context.Context, []Message) ([]Offset, []error)
}

// BufferReader is the buffer from which we are reading.
type BufferReader interface {
	io.Closer
	// GetName returns the name.
	GetName() string
	// Read reads a chunk of messages and returns at the first occurrence of an
	// error. Error does not indicate that the array of result is empty, the
	// callee should process all the elements in the array even if the error is
	// set. Read will not mark the message in the buffer as "READ" if the read
	// for that index is erring. There is a chance that we have read the message
	// and the process got forcefully terminated before processing; to provide
	// at-least-once semantics, after a restart all unacknowledged messages are
	// reprocessed.
	Read(context.Context, int64) ([]*ReadMessage, error)
	// Ack acknowledges an array of offsets.
	Ack(context.Context, []Offset) []error
	// NoAck cancels acknowledgement of an array of offsets.
	NoAck(context.Context, []Offset)
	// Pending returns the count of pending messages.
	Pending(context.Context) (int64, error)
}
