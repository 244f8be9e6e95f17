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

package simplebuffer

import "time"

// BufferFullWritingStrategy decides what Write does when the ring is full.
type BufferFullWritingStrategy int

const (
	// RetryUntilSuccess blocks the writer until a slot frees up (backpressure).
	RetryUntilSuccess BufferFullWritingStrategy = iota
	// DiscardLatest fails the write with a buffer-full error.
	DiscardLatest
)

type options struct {
	// readTimeOut is the timeout needed for Read timeout
	readTimeOut time.Duration
	// bufferFullWritingStrategy is the writing strategy when buffer is full
	bufferFullWritingStrategy BufferFullWritingStrategy
}

// Option to apply different options
type Option func(*options) error

// WithReadTimeOut sets the read timeout
func WithReadTimeOut(timeout time.Duration) Option {
	return func(o *options) error {
		o.readTimeOut = timeout
		return nil
	}
}

// WithBufferFullWritingStrategy sets the writing strategy when buffer is full
func WithBufferFullWritingStrategy(s BufferFullWritingStrategy) Option {
	return func(o *options) error {
		o.bufferFullWritingStrategy = s
		return nil
	}
}
