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

// Package logger implements a sink that prints the output lines. Useful for
// debugging and as the default late data side sink.
package logger

import (
	"context"

	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/shared/logging"
)

// ToLog prints the output to the log.
type ToLog struct {
	name   string
	logger *zap.SugaredLogger
}

// Option is a log sink option.
type Option func(*ToLog) error

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToLog) error {
		t.logger = log
		return nil
	}
}

// New returns a ToLog sink.
func New(opts ...Option) (*ToLog, error) {
	toLog := &ToLog{name: "log-sink"}
	for _, o := range opts {
		if err := o(toLog); err != nil {
			return nil, err
		}
	}
	if toLog.logger == nil {
		toLog.logger = logging.NewLogger()
	}
	return toLog, nil
}

// GetName returns the name.
func (t *ToLog) GetName() string {
	return t.name
}

// Write prints the lines.
func (t *ToLog) Write(_ context.Context, lines []string) []error {
	for _, line := range lines {
		t.logger.Infof("(%s) %s", t.name, line)
	}
	return make([]error, len(lines))
}

func (t *ToLog) Close() error {
	return nil
}
