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

/*
Package simplebuffer is an in-memory ring buffer that implements the isb
interfaces. It is the bounded queue placed between pipeline stages and the
record source used for local development and testing. The locking
implementation is very coarse.
*/

package simplebuffer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dataradiant/streamcount/pkg/isb"
)

// InMemoryBuffer implements the ISB interfaces.
type InMemoryBuffer struct {
	name         string
	size         int64
	buffer       []elem
	writeIdx     int64
	readIdx      int64
	partitionIdx int32
	options      *options
	rwlock       *sync.RWMutex
}

var _ isb.BufferReader = (*InMemoryBuffer)(nil)
var _ isb.BufferWriter = (*InMemoryBuffer)(nil)

// elem is the element stored in the buffer.
type elem struct {
	message isb.Message
	seq     int64
	dirty   bool
	pending bool
	acked   bool
}

// NewInMemoryBuffer returns a new buffer.
func NewInMemoryBuffer(name string, size int64, partition int32, opts ...Option) *InMemoryBuffer {
	bufferOptions := &options{
		readTimeOut:               time.Second,       // default read time out
		bufferFullWritingStrategy: RetryUntilSuccess, // default buffer full writing strategy
	}

	for _, o := range opts {
		_ = o(bufferOptions)
	}

	return &InMemoryBuffer{
		name:         name,
		size:         size,
		buffer:       make([]elem, size),
		writeIdx:     int64(0),
		readIdx:      int64(0),
		partitionIdx: partition,
		rwlock:       new(sync.RWMutex),
		options:      bufferOptions,
	}
}

// GetName returns the buffer name.
func (b *InMemoryBuffer) GetName() string {
	return b.name
}

// GetPartitionIdx returns the partition index.
func (b *InMemoryBuffer) GetPartitionIdx() int32 {
	return b.partitionIdx
}

// IsFull returns whether the buffer is full.
func (b *InMemoryBuffer) IsFull() bool {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return b.buffer[b.writeIdx%b.size].dirty
}

// IsEmpty returns whether all the messages have been acknowledged.
func (b *InMemoryBuffer) IsEmpty() bool {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return !b.buffer[b.readIdx%b.size].dirty
}

// Pending returns the number of written but not yet acknowledged messages.
func (b *InMemoryBuffer) Pending(_ context.Context) (int64, error) {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return b.writeIdx - b.readIdx, nil
}

// Write writes the messages to the buffer, blocking for space when the buffer
// is full under the RetryUntilSuccess strategy.
func (b *InMemoryBuffer) Write(ctx context.Context, messages []isb.Message) ([]isb.Offset, []error) {
	errs := make([]error, len(messages))
	offsets := make([]isb.Offset, len(messages))
	for idx, message := range messages {
	retry:
		for {
			if off, ok := b.writeOne(message); ok {
				offsets[idx] = off
				break retry
			}
			switch b.options.bufferFullWritingStrategy {
			case DiscardLatest:
				errs[idx] = isb.BufferWriteErr{Name: b.name, Full: true, Message: "Buffer full!"}
				break retry
			default: // RetryUntilSuccess
				select {
				case <-ctx.Done():
					errs[idx] = ctx.Err()
					break retry
				case <-time.After(time.Millisecond):
				}
			}
		}
	}
	return offsets, errs
}

func (b *InMemoryBuffer) writeOne(message isb.Message) (isb.Offset, bool) {
	b.rwlock.Lock()
	defer b.rwlock.Unlock()
	slot := &b.buffer[b.writeIdx%b.size]
	if slot.dirty {
		return nil, false
	}
	seq := b.writeIdx
	*slot = elem{message: message, seq: seq, dirty: true}
	b.writeIdx++
	return isb.NewSimpleStringOffset(strconv.FormatInt(seq, 10), seq, b.partitionIdx), true
}

// Read reads up to count messages, waiting up to the read timeout for the
// first one to show up.
func (b *InMemoryBuffer) Read(ctx context.Context, count int64) ([]*isb.ReadMessage, error) {
	deadline := time.After(b.options.readTimeOut)
	for {
		if msgs := b.readBatch(count); len(msgs) > 0 {
			return msgs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, nil
		case <-time.After(time.Millisecond):
		}
	}
}

func (b *InMemoryBuffer) readBatch(count int64) []*isb.ReadMessage {
	b.rwlock.Lock()
	defer b.rwlock.Unlock()
	var msgs []*isb.ReadMessage
	for idx := b.readIdx; idx < b.writeIdx && int64(len(msgs)) < count; idx++ {
		slot := &b.buffer[idx%b.size]
		if !slot.dirty || slot.pending || slot.acked {
			continue
		}
		slot.pending = true
		rm := slot.message.ToReadMessage(isb.NewSimpleStringOffset(strconv.FormatInt(slot.seq, 10), slot.seq, b.partitionIdx))
		msgs = append(msgs, rm)
	}
	return msgs
}

// Ack acknowledges the offsets and releases the slots of the fully
// acknowledged prefix for reuse.
func (b *InMemoryBuffer) Ack(_ context.Context, offsets []isb.Offset) []error {
	errs := make([]error, len(offsets))
	b.rwlock.Lock()
	defer b.rwlock.Unlock()
	for idx, offset := range offsets {
		seq, err := offset.Sequence()
		if err != nil {
			errs[idx] = err
			continue
		}
		slot := &b.buffer[seq%b.size]
		if slot.dirty && slot.seq == seq {
			slot.acked = true
		}
	}
	// slide the read index past the acknowledged prefix
	for b.readIdx < b.writeIdx {
		slot := &b.buffer[b.readIdx%b.size]
		if !slot.acked {
			break
		}
		*slot = elem{}
		b.readIdx++
	}
	return errs
}

// NoAck makes the offsets readable again.
func (b *InMemoryBuffer) NoAck(_ context.Context, offsets []isb.Offset) {
	b.rwlock.Lock()
	defer b.rwlock.Unlock()
	for _, offset := range offsets {
		seq, err := offset.Sequence()
		if err != nil {
			continue
		}
		slot := &b.buffer[seq%b.size]
		if slot.dirty && slot.seq == seq {
			slot.pending = false
		}
	}
}

func (b *InMemoryBuffer) Close() error {
	return nil
}
