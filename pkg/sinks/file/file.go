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

// Package file implements a sink that appends lines to a text file.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/shared/logging"
)

// ToFile appends the output lines to a text file.
type ToFile struct {
	name string
	path string
	f    *os.File
	w    *bufio.Writer
	mu   sync.Mutex
	log  *zap.SugaredLogger
}

// Option is a file sink option.
type Option func(*ToFile) error

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToFile) error {
		t.log = log
		return nil
	}
}

// New returns a ToFile sink appending to path, creating the file when absent.
func New(path string, opts ...Option) (*ToFile, error) {
	tf := &ToFile{
		name: "file-sink",
		path: path,
	}
	for _, o := range opts {
		if err := o(tf); err != nil {
			return nil, err
		}
	}
	if tf.log == nil {
		tf.log = logging.NewLogger()
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink file %q, %w", path, err)
	}
	tf.f = f
	tf.w = bufio.NewWriter(f)
	return tf, nil
}

// GetName returns the name.
func (tf *ToFile) GetName() string {
	return tf.name
}

// Write appends the lines, one per row, and flushes so that a completed
// window is on disk before it is considered emitted.
func (tf *ToFile) Write(_ context.Context, lines []string) []error {
	errs := make([]error, len(lines))
	tf.mu.Lock()
	defer tf.mu.Unlock()
	for idx, line := range lines {
		if _, err := tf.w.WriteString(line + "\n"); err != nil {
			errs[idx] = err
		}
	}
	if err := tf.w.Flush(); err != nil {
		for idx := range errs {
			if errs[idx] == nil {
				errs[idx] = err
			}
		}
	}
	return errs
}

func (tf *ToFile) Close() error {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.log.Infow("Closing file sink...", zap.String("path", tf.path))
	if err := tf.w.Flush(); err != nil {
		return err
	}
	if err := tf.f.Sync(); err != nil {
		return err
	}
	return tf.f.Close()
}
