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

package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/sinks/sinker"
)

type options struct {
	// readBatchSize is the batch size of each source Read
	readBatchSize int64
	// pollInterval is how often completed windows are looked for
	pollInterval time.Duration
	// retryBackoff is the initial backoff on transient source/sink failures
	retryBackoff time.Duration
	// maxBackoff caps the exponential backoff
	maxBackoff time.Duration
	// shutdownTimeout bounds the final flush
	shutdownTimeout time.Duration
	// sideSink receives late data lines, when the policy asks for a side output
	sideSink sinker.Sinker
	logger   *zap.SugaredLogger
}

func defaultOptions() *options {
	return &options{
		readBatchSize:   64,
		pollInterval:    time.Second,
		retryBackoff:    100 * time.Millisecond,
		maxBackoff:      5 * time.Second,
		shutdownTimeout: 30 * time.Second,
	}
}

// Option to apply different options to the Pipeline.
type Option func(*options) error

// WithReadBatchSize sets the source read batch size.
func WithReadBatchSize(n int64) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("invalid read batch size %d, must be positive", n)
		}
		o.readBatchSize = n
		return nil
	}
}

// WithPollInterval sets how often the driver polls for completed windows.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("invalid poll interval %v, must be positive", d)
		}
		o.pollInterval = d
		return nil
	}
}

// WithRetryBackoff sets the initial retry backoff.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) error {
		o.retryBackoff = d
		return nil
	}
}

// WithShutdownTimeout bounds the shutdown flush.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.shutdownTimeout = d
		return nil
	}
}

// WithSideSink sets the sink receiving late data lines.
func WithSideSink(s sinker.Sinker) Option {
	return func(o *options) error {
		o.sideSink = s
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}
