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

package aggregate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataradiant/streamcount/pkg/window"
)

var testBase = time.Unix(1651129200, 0).UTC()

func testWindow(idx int) window.IntervalWindow {
	return window.IntervalWindow{
		Start: testBase.Add(time.Duration(idx) * time.Minute),
		End:   testBase.Add(time.Duration(idx+1) * time.Minute),
	}
}

func toMap(records []CountRecord) map[string]uint64 {
	m := make(map[string]uint64, len(records))
	for _, r := range records {
		m[r.Key] = r.Count
	}
	return m
}

func TestAggregator_CompletionExactness(t *testing.T) {
	agg, err := New(time.Minute)
	require.NoError(t, err)

	win := testWindow(0)
	for _, token := range []string{"the", "quick", "fox", "the", "lazy", "fox"} {
		agg.Ingest(token, win, testBase)
	}
	assert.Equal(t, 1, agg.OpenWindows())

	records := agg.CompleteWindow(win)
	assert.Equal(t, map[string]uint64{"the": 2, "quick": 1, "fox": 2, "lazy": 1}, toMap(records))

	var sum uint64
	for _, r := range records {
		sum += r.Count
	}
	assert.Equal(t, uint64(6), sum)
	assert.Equal(t, 0, agg.OpenWindows())

	// completing again yields nothing, the tally was a single emission
	assert.Nil(t, agg.CompleteWindow(win))
}

func TestAggregator_CountsAreAdditive(t *testing.T) {
	agg, err := New(time.Minute)
	require.NoError(t, err)

	win := testWindow(0)
	tokens := []string{"a", "b", "a"}
	for i := 0; i < 2; i++ {
		for _, token := range tokens {
			agg.Ingest(token, win, testBase)
		}
	}
	records := agg.CompleteWindow(win)
	assert.Equal(t, map[string]uint64{"a": 4, "b": 2}, toMap(records))
}

func TestAggregator_PollCompletedWindows(t *testing.T) {
	gap := 10 * time.Second
	agg, err := New(gap)
	require.NoError(t, err)

	w0, w1 := testWindow(0), testWindow(1)
	t0 := testBase
	t1 := testBase.Add(70 * time.Second)
	agg.Ingest("a", w0, t0)
	agg.Ingest("b", w1, t1)

	// nothing is idle long enough yet
	assert.Empty(t, agg.PollCompletedWindows(t0.Add(5*time.Second)))

	// w0 idle past the gap, w1 still active
	completed := agg.PollCompletedWindows(t1.Add(5 * time.Second))
	require.Len(t, completed, 1)
	assert.Equal(t, w0.ID(), completed[0].ID())

	// both idle, ascending start order
	completed = agg.PollCompletedWindows(t1.Add(gap))
	require.Len(t, completed, 2)
	assert.Equal(t, w0.ID(), completed[0].ID())
	assert.Equal(t, w1.ID(), completed[1].ID())
}

func TestAggregator_ActivityHoldsBackOlderWindows(t *testing.T) {
	// an element for an old window keeps the idle-gap clock of that window
	// running, so recent activity on a *later* window must not complete it,
	// while activity on an *earlier* window holds back everything after it
	gap := 10 * time.Second
	agg, err := New(gap)
	require.NoError(t, err)

	w0, w1 := testWindow(0), testWindow(1)
	agg.Ingest("a", w0, testBase.Add(65*time.Second)) // out-of-order arrival
	agg.Ingest("b", w1, testBase.Add(61*time.Second))

	// w1's own last arrival is past the gap, but w0 (earlier) saw data more
	// recently, so neither completes
	assert.Empty(t, agg.PollCompletedWindows(testBase.Add(72*time.Second)))

	completed := agg.PollCompletedWindows(testBase.Add(76 * time.Second))
	assert.Len(t, completed, 2)
}

func TestAggregator_LateDataDrop(t *testing.T) {
	agg, err := New(time.Minute)
	require.NoError(t, err)

	win := testWindow(0)
	agg.Ingest("a", win, testBase)
	records := agg.CompleteWindow(win)
	assert.Equal(t, map[string]uint64{"a": 1}, toMap(records))

	// late arrival for the completed window is never merged back
	agg.Ingest("a", win, testBase.Add(time.Second))
	assert.Equal(t, 0, agg.OpenWindows())
	assert.Equal(t, uint64(1), agg.LateDropCount())
	assert.Nil(t, agg.CompleteWindow(win))
}

func TestAggregator_LateDataSideOutput(t *testing.T) {
	agg, err := New(time.Minute, WithLatePolicy(LateSideOutput), WithSideBuffer(4))
	require.NoError(t, err)

	win := testWindow(0)
	agg.Ingest("a", win, testBase)
	agg.CompleteWindow(win)

	agg.Ingest("b", win, testBase.Add(time.Second))
	assert.Equal(t, uint64(0), agg.LateDropCount())
	assert.Equal(t, 0, agg.OpenWindows())

	select {
	case le := <-agg.Side():
		assert.Equal(t, "b", le.Key)
		assert.Equal(t, win.ID(), le.Window.ID())
	default:
		t.Fatal("expected a late element on the side channel")
	}
}

func TestAggregator_EarlierCompletedBoundary(t *testing.T) {
	agg, err := New(time.Minute)
	require.NoError(t, err)

	w0, w1 := testWindow(0), testWindow(1)
	agg.Ingest("a", w1, testBase.Add(60*time.Second))
	agg.CompleteWindow(w1)

	// w0 ends before the completion boundary, it can no longer open
	agg.Ingest("a", w0, testBase.Add(61*time.Second))
	assert.Equal(t, 0, agg.OpenWindows())
	assert.Equal(t, uint64(1), agg.LateDropCount())
}

func TestAggregator_Flush(t *testing.T) {
	agg, err := New(time.Minute)
	require.NoError(t, err)

	for idx := 4; idx >= 0; idx-- {
		agg.Ingest("a", testWindow(idx), testBase)
	}
	wins := agg.Flush()
	require.Len(t, wins, 5)
	for i := 1; i < len(wins); i++ {
		assert.True(t, wins[i-1].Start.Before(wins[i].Start), "flush must be ascending")
	}
}

func TestAggregator_ConcurrentIngest(t *testing.T) {
	agg, err := New(time.Minute)
	require.NoError(t, err)

	win := testWindow(0)
	const writers = 8
	const perWriter = 1000

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				agg.Ingest("hot", win, testBase)
				agg.Ingest("cold", win, testBase)
			}
		}()
	}
	wg.Wait()

	records := agg.CompleteWindow(win)
	assert.Equal(t, map[string]uint64{"hot": writers * perWriter, "cold": writers * perWriter}, toMap(records))
}

func TestAggregator_IngestRacingCompletion(t *testing.T) {
	agg, err := New(time.Minute)
	require.NoError(t, err)

	win := testWindow(0)
	agg.Ingest("seed", win, testBase)

	// resolve the state the way Ingest's fast path does, then let the
	// completion run before the increment lands
	agg.mu.RLock()
	state := agg.open[win.Start.UnixMilli()]
	agg.mu.RUnlock()
	require.NotNil(t, state)

	records := agg.CompleteWindow(win)
	assert.Equal(t, map[string]uint64{"seed": 1}, toMap(records))

	// the pending increment is refused, not lost and not panicking
	assert.False(t, state.ingest("straggler", testBase))
	agg.Ingest("straggler", win, testBase)
	assert.Equal(t, uint64(1), agg.LateDropCount())
	assert.Nil(t, agg.CompleteWindow(win))
}

func TestAggregator_ConcurrentIngestAndComplete(t *testing.T) {
	agg, err := New(time.Minute)
	require.NoError(t, err)

	win := testWindow(0)
	const writers = 4
	const perWriter = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				agg.Ingest("x", win, testBase)
			}
		}()
	}

	done := make(chan uint64, 1)
	go func() {
		time.Sleep(time.Millisecond)
		var emitted uint64
		for _, r := range agg.CompleteWindow(win) {
			emitted += r.Count
		}
		done <- emitted
	}()
	wg.Wait()
	emitted := <-done

	// every increment is either in the emitted tally or counted late
	assert.Equal(t, uint64(writers*perWriter), emitted+agg.LateDropCount())
	assert.Equal(t, 0, agg.OpenWindows())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
	_, err = New(-time.Second)
	assert.Error(t, err)
	_, err = New(time.Minute, WithLatePolicy("reopen"))
	assert.Error(t, err)
	_, err = New(time.Minute, WithSideBuffer(0))
	assert.Error(t, err)
}
