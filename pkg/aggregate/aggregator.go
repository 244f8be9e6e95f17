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

// Package aggregate implements the windowed per-key counting engine. It
// buffers exact counts per (window, key), declares a window complete once the
// idle gap has elapsed for it and every earlier window, and never reopens a
// window once its tally has been handed out. Windows therefore complete
// oldest first and each window's result is a single emission.
package aggregate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/metrics"
	"github.com/dataradiant/streamcount/pkg/shared/logging"
	"github.com/dataradiant/streamcount/pkg/window"
)

// LatePolicy decides what happens to an element assigned to a window that has
// already been completed.
type LatePolicy string

const (
	// LateDrop counts the late element in a diagnostic counter and discards it.
	LateDrop LatePolicy = "drop"
	// LateSideOutput delivers the late element on the side channel.
	LateSideOutput LatePolicy = "sideOutput"
)

// CountRecord is the final tally of one key in one window. Immutable,
// produced exactly once per key per window at completion time.
type CountRecord struct {
	Key    string
	Count  uint64
	Window window.IntervalWindow
}

// LateElement is a token that arrived after its window completed.
type LateElement struct {
	Key     string
	Window  window.IntervalWindow
	Arrival time.Time
}

// windowState holds the running counts of one open window. The per-window
// mutex linearizes increments so concurrent partitions never lose updates.
type windowState struct {
	win      window.IntervalWindow
	mu       sync.Mutex
	counts   map[string]uint64
	lastSeen time.Time
	// closed is set when the tally has been handed out; increments arriving
	// after that are refused so they can take the late path instead
	closed bool
}

func (ws *windowState) ingest(token string, arrival time.Time) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return false
	}
	ws.counts[token]++
	if arrival.After(ws.lastSeen) {
		ws.lastSeen = arrival
	}
	return true
}

// Aggregator owns the WindowState of every open window.
type Aggregator struct {
	pipelineName string
	gap          time.Duration
	policy       LatePolicy

	mu   sync.RWMutex
	open map[int64]*windowState
	// boundary is the end of the newest completed window. Windows complete
	// oldest first, so anything at or before it is late.
	boundary time.Time

	side        chan LateElement
	lateDropped atomic.Uint64
	log         *zap.SugaredLogger
}

// New returns an Aggregator with the given idle gap. The gap is the only
// time-based completion trigger: a window is complete once no element has
// arrived for it, or for any earlier window, for this long.
func New(gap time.Duration, opts ...Option) (*Aggregator, error) {
	if gap <= 0 {
		return nil, fmt.Errorf("invalid idle gap %v, must be positive", gap)
	}
	a := &Aggregator{
		gap:    gap,
		policy: LateDrop,
		open:   make(map[int64]*windowState),
		log:    logging.NewLogger(),
	}
	for _, o := range opts {
		if err := o(a); err != nil {
			return nil, err
		}
	}
	if a.policy == LateSideOutput && a.side == nil {
		a.side = make(chan LateElement, defaultSideBuffer)
	}
	return a, nil
}

// Ingest adds one occurrence of token to the window's running count. It
// creates the window state and the per-key entry on first touch. If the
// window has already been completed the token is late and is handled per the
// configured policy instead; it is never merged into an emitted tally.
// Non-blocking apart from brief critical sections.
func (a *Aggregator) Ingest(token string, win window.IntervalWindow, arrival time.Time) {
	a.mu.RLock()
	if !win.End.After(a.boundary) {
		a.mu.RUnlock()
		a.handleLate(token, win, arrival)
		return
	}
	state, ok := a.open[win.Start.UnixMilli()]
	a.mu.RUnlock()
	if ok {
		// the window may complete concurrently after the lookup; a refused
		// increment is late, never lost
		if !state.ingest(token, arrival) {
			a.handleLate(token, win, arrival)
		}
		return
	}

	a.mu.Lock()
	// the window may have completed between the two lock acquisitions
	if !win.End.After(a.boundary) {
		a.mu.Unlock()
		a.handleLate(token, win, arrival)
		return
	}
	state, ok = a.open[win.Start.UnixMilli()]
	if !ok {
		state = &windowState{win: win, counts: make(map[string]uint64)}
		a.open[win.Start.UnixMilli()] = state
	}
	a.mu.Unlock()
	if !state.ingest(token, arrival) {
		a.handleLate(token, win, arrival)
	}
}

func (a *Aggregator) handleLate(token string, win window.IntervalWindow, arrival time.Time) {
	if a.policy == LateSideOutput {
		select {
		case a.side <- LateElement{Key: token, Window: win, Arrival: arrival}:
			lateSideOutputTotal.With(map[string]string{metrics.LabelPipeline: a.pipelineName}).Inc()
			return
		default:
			// the side channel is full, fall through to drop rather than
			// block the ingestion path
			a.log.Warnw("Side output channel full, dropping late element", zap.String("window", win.ID()))
		}
	}
	a.lateDropped.Inc()
	lateDroppedTotal.With(map[string]string{metrics.LabelPipeline: a.pipelineName}).Inc()
}

// PollCompletedWindows returns the open windows whose completion condition
// holds as of now, in ascending start order. A window qualifies only when it
// and every earlier open window have been idle for the gap, which keeps the
// returned boundaries monotonically advancing.
func (a *Aggregator) PollCompletedWindows(now time.Time) []window.IntervalWindow {
	states := a.openStatesAscending()

	var completed []window.IntervalWindow
	var latest time.Time
	for _, st := range states {
		st.mu.Lock()
		seen := st.lastSeen
		st.mu.Unlock()
		if seen.After(latest) {
			latest = seen
		}
		if now.Sub(latest) < a.gap {
			// the running latest arrival only grows, every later window
			// fails the condition too
			break
		}
		completed = append(completed, st.win)
	}
	return completed
}

// CompleteWindow evicts the window's state and returns the final tally, one
// CountRecord per key. The result carries no ordering guarantee; consumers
// must treat it as a set. Completing an unknown or already-completed window
// returns nil. After completion any further element for this window is late.
func (a *Aggregator) CompleteWindow(win window.IntervalWindow) []CountRecord {
	a.mu.Lock()
	state, ok := a.open[win.Start.UnixMilli()]
	delete(a.open, win.Start.UnixMilli())
	if win.End.After(a.boundary) {
		a.boundary = win.End
	}
	a.mu.Unlock()
	if !ok {
		return nil
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	state.closed = true
	records := make([]CountRecord, 0, len(state.counts))
	for key, count := range state.counts {
		records = append(records, CountRecord{Key: key, Count: count, Window: win})
	}
	state.counts = nil
	windowsClosedTotal.With(map[string]string{metrics.LabelPipeline: a.pipelineName}).Inc()
	return records
}

// Flush returns every open window in ascending start order, regardless of the
// idle gap. Used on shutdown so that nothing buffered is silently dropped.
func (a *Aggregator) Flush() []window.IntervalWindow {
	states := a.openStatesAscending()
	wins := make([]window.IntervalWindow, 0, len(states))
	for _, st := range states {
		wins = append(wins, st.win)
	}
	return wins
}

func (a *Aggregator) openStatesAscending() []*windowState {
	a.mu.RLock()
	states := make([]*windowState, 0, len(a.open))
	for _, st := range a.open {
		states = append(states, st)
	}
	a.mu.RUnlock()
	sort.Slice(states, func(i, j int) bool {
		return states[i].win.Start.Before(states[j].win.Start)
	})
	return states
}

// Side returns the late data side channel, nil unless the policy is
// LateSideOutput.
func (a *Aggregator) Side() <-chan LateElement {
	return a.side
}

// OpenWindows returns the number of windows currently buffering counts.
func (a *Aggregator) OpenWindows() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.open)
}

// LateDropCount returns the number of late elements not delivered to the side
// channel.
func (a *Aggregator) LateDropCount() uint64 {
	return a.lateDropped.Load()
}
