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

package generator

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Option is a generator source option.
type Option func(*memGen) error

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *memGen) error {
		o.logger = l
		return nil
	}
}

// WithLines replaces the default record lines cycled through.
func WithLines(lines []string) Option {
	return func(o *memGen) error {
		if len(lines) == 0 {
			return fmt.Errorf("generator needs at least one line")
		}
		o.lines = lines
		return nil
	}
}

// WithReadTimeout sets the read timeout for each Read call.
func WithReadTimeout(t time.Duration) Option {
	return func(o *memGen) error {
		o.readTimeout = t
		return nil
	}
}
