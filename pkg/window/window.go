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

// Package window defines the identity of a time window and the assignment
// contract. Windows are half-open intervals that tile the timeline with no
// gaps and no overlaps, so every timestamp belongs to exactly one window.
package window

import (
	"fmt"
	"time"
)

// IntervalWindow is the half-open interval [Start, End). It is the stable,
// comparable identity of a window.
type IntervalWindow struct {
	// Start is the start time of the window (inclusive).
	Start time.Time
	// End is the end time of the window (exclusive).
	End time.Time
}

// ID returns a stable string identifier, startMillis-endMillis.
func (iw IntervalWindow) ID() string {
	return fmt.Sprintf("%d-%d", iw.Start.UnixMilli(), iw.End.UnixMilli())
}

func (iw IntervalWindow) String() string {
	return fmt.Sprintf("[%s, %s)", iw.Start.Format(time.RFC3339), iw.End.Format(time.RFC3339))
}

// Contains reports whether t falls inside the window.
func (iw IntervalWindow) Contains(t time.Time) bool {
	return !t.Before(iw.Start) && t.Before(iw.End)
}

// Assigner maps a timestamp to the window it belongs to. Implementations must
// be pure: the same timestamp always maps to the same window, independent of
// arrival order.
type Assigner interface {
	// Assign returns the window the given timestamp belongs to.
	Assign(t time.Time) IntervalWindow
	// Length is the temporal length of the windows produced.
	Length() time.Duration
}
