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

// Package sourcer defines the contract between the pipeline driver and the
// record sources.
package sourcer

import (
	"context"
	"io"

	"github.com/dataradiant/streamcount/pkg/isb"
)

// SourceReader produces a lazy, unbounded sequence of raw text records. An
// implementation must support at-least-once redelivery: a record that was
// read but never acknowledged is delivered again after a reconnect.
type SourceReader interface {
	io.Closer
	// GetName returns the name of the source.
	GetName() string
	// Read reads a chunk of messages and returns at the first occurrence of an
	// error. Error does not indicate that the array of result is empty, the
	// callee should process all the elements in the array even if the error is
	// set.
	Read(context.Context, int64) ([]*isb.ReadMessage, error)
	// Ack acknowledges an array of offsets.
	Ack(context.Context, []isb.Offset) []error
}

// LagReader is implemented by sources that can report how far behind the
// pipeline is.
type LagReader interface {
	// Pending returns the pending messages number.
	Pending(context.Context) (int64, error)
}
