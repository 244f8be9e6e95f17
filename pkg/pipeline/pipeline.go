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

// Package pipeline wires Source -> Tokenizer -> Windower -> Aggregator ->
// Formatter -> Sink and owns lifecycle and backpressure between the stages.
// The ingestion loop and the window poll loop run concurrently; shutdown
// stops ingestion, flushes every open window in ascending order and drains
// the sink path before returning.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dataradiant/streamcount/pkg/aggregate"
	"github.com/dataradiant/streamcount/pkg/format"
	"github.com/dataradiant/streamcount/pkg/isb"
	"github.com/dataradiant/streamcount/pkg/shared/logging"
	"github.com/dataradiant/streamcount/pkg/sinks/sinker"
	"github.com/dataradiant/streamcount/pkg/sources/sourcer"
	"github.com/dataradiant/streamcount/pkg/tokenize"
	"github.com/dataradiant/streamcount/pkg/window"
)

// Pipeline is the driver connecting the stages.
type Pipeline struct {
	name      string
	source    sourcer.SourceReader
	sink      sinker.Sinker
	tokenizer *tokenize.Tokenizer
	assigner  window.Assigner
	agg       *aggregate.Aggregator
	opts      *options
	log       *zap.SugaredLogger

	// unwritten lines of a window whose emission was interrupted by
	// cancellation; flushed before exit so nothing is silently dropped
	pendingMu sync.Mutex
	pending   []string
}

// New returns a Pipeline.
func New(name string, source sourcer.SourceReader, sink sinker.Sinker, assigner window.Assigner, agg *aggregate.Aggregator, opts ...Option) (*Pipeline, error) {
	options := defaultOptions()
	for _, o := range opts {
		if err := o(options); err != nil {
			return nil, err
		}
	}
	p := &Pipeline{
		name:      name,
		source:    source,
		sink:      sink,
		tokenizer: tokenize.New(name),
		assigner:  assigner,
		agg:       agg,
		opts:      options,
		log:       options.logger,
	}
	if p.log == nil {
		p.log = logging.NewLogger()
	}
	if agg.Side() != nil && options.sideSink == nil {
		return nil, fmt.Errorf("aggregator has a side output but no side sink is configured")
	}
	return p, nil
}

// Start runs the pipeline until ctx is cancelled, then flushes all remaining
// open windows and closes the collaborators. Buffered counts are emitted
// before exit.
func (p *Pipeline) Start(ctx context.Context) error {
	p.log.Infow("Starting pipeline...", zap.String("source", p.source.GetName()), zap.String("sink", p.sink.GetName()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.ingestLoop(gctx) })
	g.Go(func() error { return p.pollLoop(gctx) })
	if p.agg.Side() != nil {
		g.Go(func() error { return p.sideLoop(gctx) })
	}
	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// the loops have stopped; flush with a fresh, bounded context
	cctx, cancel := context.WithTimeout(context.Background(), p.opts.shutdownTimeout)
	defer cancel()
	flushErr := p.flushAll(cctx)
	p.drainSide(cctx)

	if err := p.source.Close(); err != nil {
		p.log.Errorw("Failed to close source, shutdown anyways...", zap.Error(err))
	}
	if err := p.sink.Close(); err != nil {
		p.log.Errorw("Failed to close sink, shutdown anyways...", zap.Error(err))
	}
	if p.opts.sideSink != nil {
		if err := p.opts.sideSink.Close(); err != nil {
			p.log.Errorw("Failed to close side sink, shutdown anyways...", zap.Error(err))
		}
	}
	p.log.Info("Pipeline stopped")
	return errors.Join(runErr, flushErr)
}

// ingestLoop pulls record batches from the source, tokenizes them, assigns
// windows and feeds the aggregator. Offsets are acknowledged only after the
// whole batch is ingested, which is what gives at-least-once semantics.
func (p *Pipeline) ingestLoop(ctx context.Context) error {
	backoff := p.opts.retryBackoff
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Stopping ingestion...")
			return nil
		default:
		}

		msgs, err := p.source.Read(ctx, p.opts.readBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// transient source failure, pause and retry
			p.log.Errorw("Failed to read from source, retrying...", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, p.opts.maxBackoff)
			continue
		}
		backoff = p.opts.retryBackoff
		if len(msgs) == 0 {
			continue
		}

		arrival := time.Now()
		offsets := make([]isb.Offset, 0, len(msgs))
		for _, m := range msgs {
			ts := m.EventTime
			if ts.IsZero() {
				ts = arrival
			}
			win := p.assigner.Assign(ts)
			for _, token := range p.tokenizer.Tokenize(string(m.Payload)) {
				p.agg.Ingest(token, win, arrival)
			}
			offsets = append(offsets, m.ReadOffset)
		}
		for _, err := range p.source.Ack(ctx, offsets) {
			if err != nil {
				p.log.Errorw("Failed to ack an offset", zap.Error(err))
			}
		}
	}
}

// pollLoop periodically completes idle windows and emits their tallies.
func (p *Pipeline) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, win := range p.agg.PollCompletedWindows(time.Now()) {
				if err := p.emitWindow(ctx, win); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	}
}

// emitWindow completes the window and pushes its tally through the formatter
// into the sink. The records count as emitted only once the sink accepted
// them; lines the sink never accepted are stashed for the shutdown flush.
func (p *Pipeline) emitWindow(ctx context.Context, win window.IntervalWindow) error {
	records := p.agg.CompleteWindow(win)
	if len(records) == 0 {
		return nil
	}
	lines := make([]string, 0, len(records))
	for i := range records {
		line, err := format.Format(&records[i])
		if err != nil {
			// programming error, do not retry
			return err
		}
		lines = append(lines, line)
	}
	p.log.Infow("Window complete", zap.String("window", win.ID()), zap.Int("keys", len(lines)))
	unwritten, err := p.writeWithRetry(ctx, p.sink, lines)
	if len(unwritten) > 0 {
		p.pendingMu.Lock()
		p.pending = append(p.pending, unwritten...)
		p.pendingMu.Unlock()
	}
	return err
}

// writeWithRetry retries the failed subset of lines with capped exponential
// backoff until the sink accepts everything or ctx is cancelled. It returns
// the lines the sink never accepted.
func (p *Pipeline) writeWithRetry(ctx context.Context, sink sinker.Sinker, lines []string) ([]string, error) {
	backoff := p.opts.retryBackoff
	for {
		errs := sink.Write(ctx, lines)
		var failed []string
		for idx, err := range errs {
			if err != nil {
				failed = append(failed, lines[idx])
			}
		}
		if len(failed) == 0 {
			return nil, nil
		}
		p.log.Warnw("Sink rejected lines, retrying...", zap.Int("failed", len(failed)), zap.String("sink", sink.GetName()))
		select {
		case <-ctx.Done():
			return failed, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, p.opts.maxBackoff)
	}
}

// sideLoop forwards late elements to the side sink.
func (p *Pipeline) sideLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case le := <-p.agg.Side():
			p.writeSide(ctx, le)
		}
	}
}

func (p *Pipeline) writeSide(ctx context.Context, le aggregate.LateElement) {
	line := fmt.Sprintf("%s late for window %s", le.Key, le.Window.ID())
	for _, err := range p.opts.sideSink.Write(ctx, []string{line}) {
		if err != nil {
			// the side output is diagnostic, log and move on
			p.log.Errorw("Failed to write late element to side sink", zap.Error(err))
		}
	}
}

// drainSide delivers any late elements still buffered on the side channel.
func (p *Pipeline) drainSide(ctx context.Context) {
	if p.agg.Side() == nil {
		return
	}
	for {
		select {
		case le := <-p.agg.Side():
			p.writeSide(ctx, le)
		default:
			return
		}
	}
}

// flushAll force-completes every open window in ascending start order and any
// lines stranded by an interrupted emission.
func (p *Pipeline) flushAll(ctx context.Context) error {
	p.pendingMu.Lock()
	stranded := p.pending
	p.pending = nil
	p.pendingMu.Unlock()

	var errs []error
	if len(stranded) > 0 {
		if unwritten, err := p.writeWithRetry(ctx, p.sink, stranded); err != nil {
			errs = append(errs, fmt.Errorf("%d stranded lines not flushed, %w", len(unwritten), err))
		}
	}

	wins := p.agg.Flush()
	if len(wins) > 0 {
		p.log.Infow("Flushing open windows...", zap.Int("windows", len(wins)))
	}
	for _, win := range wins {
		if err := p.emitWindow(ctx, win); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush window %s, %w", win.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// EmptyRecordCount returns the tokenizer's empty record diagnostic counter.
func (p *Pipeline) EmptyRecordCount() uint64 {
	return p.tokenizer.EmptyRecordCount()
}
