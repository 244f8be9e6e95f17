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

// Package blackhole implements a sink that drops everything. Used for
// benchmarking and as a side sink when late data only needs counting.
package blackhole

import (
	"context"
)

// Blackhole is a sink to emulate /dev/null.
type Blackhole struct {
	name string
}

// New returns a Blackhole sink.
func New() *Blackhole {
	return &Blackhole{name: "blackhole-sink"}
}

// GetName returns the name.
func (b *Blackhole) GetName() string {
	return b.name
}

// Write drops the lines.
func (b *Blackhole) Write(_ context.Context, lines []string) []error {
	return make([]error, len(lines))
}

func (b *Blackhole) Close() error {
	return nil
}
