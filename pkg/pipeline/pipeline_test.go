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
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dataradiant/streamcount/pkg/aggregate"
	"github.com/dataradiant/streamcount/pkg/isb"
	"github.com/dataradiant/streamcount/pkg/isb/simplebuffer"
	"github.com/dataradiant/streamcount/pkg/window/fixed"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// captureSink collects the written lines, optionally rejecting the first few
// Write calls to exercise the retry path.
type captureSink struct {
	mu        sync.Mutex
	lines     []string
	failFirst int
}

func (s *captureSink) GetName() string { return "capture-sink" }

func (s *captureSink) Write(_ context.Context, lines []string) []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]error, len(lines))
	if s.failFirst > 0 {
		s.failFirst--
		for i := range errs {
			errs[i] = fmt.Errorf("sink unavailable")
		}
		return errs
	}
	s.lines = append(s.lines, lines...)
	return errs
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func newMessages(eventTime time.Time, texts ...string) []isb.Message {
	msgs := make([]isb.Message, 0, len(texts))
	for i, text := range texts {
		msgs = append(msgs, isb.Message{
			Header: isb.Header{EventTime: eventTime, ID: strconv.Itoa(i)},
			Body:   isb.Body{Payload: []byte(text)},
		})
	}
	return msgs
}

func toCounts(t *testing.T, lines []string) map[string]uint64 {
	t.Helper()
	m := make(map[string]uint64, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, ": ", 2)
		require.Len(t, parts, 2, "malformed line %q", line)
		n, err := strconv.ParseUint(parts[1], 10, 64)
		require.NoError(t, err)
		m[parts[0]] += n
	}
	return m
}

func TestPipeline_ShutdownFlush(t *testing.T) {
	buf := simplebuffer.NewInMemoryBuffer("in", 16, 0, simplebuffer.WithReadTimeOut(10*time.Millisecond))
	sink := &captureSink{}
	assigner, err := fixed.NewAssigner(time.Minute)
	require.NoError(t, err)
	agg, err := aggregate.New(time.Minute)
	require.NoError(t, err)

	p, err := New("test", buf, sink, assigner, agg,
		WithReadBatchSize(4),
		WithPollInterval(10*time.Millisecond),
		WithRetryBackoff(time.Millisecond),
		WithShutdownTimeout(5*time.Second))
	require.NoError(t, err)

	eventTime := time.Now()
	_, errs := buf.Write(context.Background(), newMessages(eventTime, "the quick fox", "", "the lazy fox"))
	for _, err := range errs {
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(ctx) }()

	// every record ingested and acked before we stop
	require.Eventually(t, buf.IsEmpty, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	counts := toCounts(t, sink.snapshot())
	assert.Equal(t, map[string]uint64{"the": 2, "quick": 1, "fox": 2, "lazy": 1}, counts)
	assert.Equal(t, uint64(1), p.EmptyRecordCount())
	assert.Equal(t, 0, agg.OpenWindows())
}

func TestPipeline_IdleGapEmitsWhileRunning(t *testing.T) {
	buf := simplebuffer.NewInMemoryBuffer("in", 16, 0, simplebuffer.WithReadTimeOut(5*time.Millisecond))
	sink := &captureSink{}
	assigner, err := fixed.NewAssigner(50 * time.Millisecond)
	require.NoError(t, err)
	agg, err := aggregate.New(30 * time.Millisecond)
	require.NoError(t, err)

	p, err := New("test", buf, sink, assigner, agg,
		WithReadBatchSize(4),
		WithPollInterval(5*time.Millisecond),
		WithRetryBackoff(time.Millisecond))
	require.NoError(t, err)

	buf.Write(context.Background(), newMessages(time.Now(), "hello world hello"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(ctx) }()

	// the window completes through the idle gap, no shutdown involved
	assert.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, map[string]uint64{"hello": 2, "world": 1}, toCounts(t, sink.snapshot()))
}

func TestPipeline_SinkRetry(t *testing.T) {
	buf := simplebuffer.NewInMemoryBuffer("in", 16, 0, simplebuffer.WithReadTimeOut(5*time.Millisecond))
	sink := &captureSink{failFirst: 3}
	assigner, err := fixed.NewAssigner(50 * time.Millisecond)
	require.NoError(t, err)
	agg, err := aggregate.New(30 * time.Millisecond)
	require.NoError(t, err)

	p, err := New("test", buf, sink, assigner, agg,
		WithReadBatchSize(4),
		WithPollInterval(5*time.Millisecond),
		WithRetryBackoff(time.Millisecond))
	require.NoError(t, err)

	buf.Write(context.Background(), newMessages(time.Now(), "retry me"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(ctx) }()

	// the transient failures are retried until the sink accepts the lines
	assert.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, map[string]uint64{"retry": 1, "me": 1}, toCounts(t, sink.snapshot()))
}

func TestPipeline_LateDataSideOutput(t *testing.T) {
	buf := simplebuffer.NewInMemoryBuffer("in", 16, 0, simplebuffer.WithReadTimeOut(5*time.Millisecond))
	sink := &captureSink{}
	sideSink := &captureSink{}
	assigner, err := fixed.NewAssigner(50 * time.Millisecond)
	require.NoError(t, err)
	agg, err := aggregate.New(30*time.Millisecond, aggregate.WithLatePolicy(aggregate.LateSideOutput))
	require.NoError(t, err)

	p, err := New("test", buf, sink, assigner, agg,
		WithReadBatchSize(4),
		WithPollInterval(5*time.Millisecond),
		WithRetryBackoff(time.Millisecond),
		WithSideSink(sideSink))
	require.NoError(t, err)

	eventTime := time.Now()
	buf.Write(context.Background(), newMessages(eventTime, "alpha"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(ctx) }()

	// wait for the window to complete
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// same event time, so this lands in the already completed window
	buf.Write(context.Background(), newMessages(eventTime, "beta"))

	assert.Eventually(t, func() bool {
		side := sideSink.snapshot()
		return len(side) == 1 && strings.HasPrefix(side[0], "beta late for window")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	// the late element never leaks into the main output
	assert.Equal(t, map[string]uint64{"alpha": 1}, toCounts(t, sink.snapshot()))
}

func TestNew_SideOutputNeedsSideSink(t *testing.T) {
	buf := simplebuffer.NewInMemoryBuffer("in", 4, 0)
	assigner, err := fixed.NewAssigner(time.Minute)
	require.NoError(t, err)
	agg, err := aggregate.New(time.Minute, aggregate.WithLatePolicy(aggregate.LateSideOutput))
	require.NoError(t, err)

	_, err = New("test", buf, &captureSink{}, assigner, agg)
	assert.Error(t, err)
}
