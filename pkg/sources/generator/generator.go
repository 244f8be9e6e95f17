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

// Package generator implements a synthetic record source for local
// development and testing. It emits a fixed number of text records per tick,
// cycling through the configured lines.
package generator

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/isb"
	"github.com/dataradiant/streamcount/pkg/shared/logging"
	"github.com/dataradiant/streamcount/pkg/sources/sourcer"
)

var defaultLines = []string{
	"the quick brown fox jumps over the lazy dog",
	"",
	"to be or not to be that is the question",
}

type memGen struct {
	name         string
	pipelineName string
	// rpu - records per time unit
	rpu int
	// timeunit - the time unit per tick
	timeunit time.Duration
	// lines cycled through by the generator
	lines []string
	next  int
	seq   atomic.Int64

	messages    chan *isb.ReadMessage
	readTimeout time.Duration

	cancelFn context.CancelFunc
	doneCh   chan struct{}
	logger   *zap.SugaredLogger
}

var _ sourcer.SourceReader = (*memGen)(nil)

// New returns a generator SourceReader producing rpu records every timeunit.
func New(pipelineName string, rpu int, timeunit time.Duration, opts ...Option) (sourcer.SourceReader, error) {
	g := &memGen{
		name:         "generator-source",
		pipelineName: pipelineName,
		rpu:          rpu,
		timeunit:     timeunit,
		lines:        defaultLines,
		readTimeout:  time.Second,
		doneCh:       make(chan struct{}),
	}
	for _, o := range opts {
		if err := o(g); err != nil {
			return nil, err
		}
	}
	if g.logger == nil {
		g.logger = logging.NewLogger()
	}
	g.messages = make(chan *isb.ReadMessage, g.rpu*2)

	ctx, cancel := context.WithCancel(context.Background())
	g.cancelFn = cancel
	go g.generate(ctx)
	return g, nil
}

func (mg *memGen) GetName() string {
	return mg.name
}

func (mg *memGen) Read(_ context.Context, count int64) ([]*isb.ReadMessage, error) {
	msgs := make([]*isb.ReadMessage, 0, count)
	timeout := time.After(mg.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m := <-mg.messages:
			msgs = append(msgs, m)
		case <-timeout:
			break loop
		}
	}
	return msgs, nil
}

// Ack is a no-op; generated records are not replayable.
func (mg *memGen) Ack(_ context.Context, offsets []isb.Offset) []error {
	return make([]error, len(offsets))
}

func (mg *memGen) Close() error {
	mg.cancelFn()
	<-mg.doneCh
	mg.logger.Info("Generator source closed")
	return nil
}

func (mg *memGen) generate(ctx context.Context) {
	defer close(mg.doneCh)
	ticker := time.NewTicker(mg.timeunit)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := 0; i < mg.rpu; i++ {
				line := mg.lines[mg.next]
				mg.next = (mg.next + 1) % len(mg.lines)
				seq := mg.seq.Inc()
				offset := isb.NewSimpleStringOffset(strconv.FormatInt(seq, 10), seq, 0)
				m := isb.Message{
					Header: isb.Header{
						EventTime: time.Now(),
						ID:        offset.String(),
					},
					Body: isb.Body{Payload: []byte(line)},
				}
				select {
				case mg.messages <- m.ToReadMessage(offset):
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
