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

// Package fixed implements fixed (tumbling) windows: contiguous,
// non-overlapping windows of a static length, aligned to the Unix epoch.
package fixed

import (
	"fmt"
	"time"

	"github.com/dataradiant/streamcount/pkg/window"
)

// Assigner assigns timestamps to fixed windows of the configured length.
type Assigner struct {
	length time.Duration
}

var _ window.Assigner = (*Assigner)(nil)

// NewAssigner returns a fixed window Assigner. The length must be positive
// and at least a millisecond, the granularity of window identities.
func NewAssigner(length time.Duration) (*Assigner, error) {
	if length < time.Millisecond {
		return nil, fmt.Errorf("invalid window length %v, must be at least %v", length, time.Millisecond)
	}
	return &Assigner{length: length}, nil
}

// Assign computes the window for the given timestamp. The start is
// floor(t/length)*length against the Unix epoch, so assignment follows a left
// inclusive, right exclusive principle: an element exactly on a boundary
// falls into the window to the right of the boundary.
//
// The epoch arithmetic is deliberate; time.Truncate aligns to Go's zero time,
// which differs from epoch alignment for lengths that do not divide a minute.
func (a *Assigner) Assign(t time.Time) window.IntervalWindow {
	length := a.length.Milliseconds()
	millis := t.UnixMilli()
	start := millis - (millis % length)
	if millis < 0 && millis%length != 0 {
		start -= length
	}
	return window.IntervalWindow{
		Start: time.UnixMilli(start).In(t.Location()),
		End:   time.UnixMilli(start + length).In(t.Location()),
	}
}

// Length returns the temporal length of the windows.
func (a *Assigner) Length() time.Duration {
	return a.length
}
