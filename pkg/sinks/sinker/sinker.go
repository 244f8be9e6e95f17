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

// Package sinker defines the contract between the pipeline driver and the
// output sinks.
package sinker

import (
	"context"
	"io"
)

// Sinker durably appends formatted lines. Writes are applied in the order
// submitted; a sink must tolerate duplicate delivery because the driver
// retries failed writes (at-least-once).
type Sinker interface {
	io.Closer
	// GetName returns the name of the sink.
	GetName() string
	// Write appends the lines and returns one error slot per line; a nil slot
	// means the line was accepted.
	Write(ctx context.Context, lines []string) []error
}
