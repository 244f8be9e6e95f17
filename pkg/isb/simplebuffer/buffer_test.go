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

package simplebuffer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataradiant/streamcount/pkg/isb"
)

func testMessages(texts ...string) []isb.Message {
	msgs := make([]isb.Message, 0, len(texts))
	for i, text := range texts {
		msgs = append(msgs, isb.Message{
			Header: isb.Header{EventTime: time.Now(), ID: texts[i]},
			Body:   isb.Body{Payload: []byte(text)},
		})
	}
	return msgs
}

func TestInMemoryBuffer_WriteReadAck(t *testing.T) {
	ctx := context.Background()
	sb := NewInMemoryBuffer("test", 8, 0, WithReadTimeOut(50*time.Millisecond))

	_, errs := sb.Write(ctx, testMessages("one", "two", "three"))
	for _, err := range errs {
		assert.NoError(t, err)
	}
	pending, _ := sb.Pending(ctx)
	assert.Equal(t, int64(3), pending)

	msgs, err := sb.Read(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", string(msgs[0].Payload))
	assert.Equal(t, "two", string(msgs[1].Payload))

	// already-read messages are not redelivered while pending
	more, err := sb.Read(ctx, 2)
	require.NoError(t, err)
	require.Len(t, more, 1)
	assert.Equal(t, "three", string(more[0].Payload))

	for _, err := range sb.Ack(ctx, []isb.Offset{msgs[0].ReadOffset, msgs[1].ReadOffset, more[0].ReadOffset}) {
		assert.NoError(t, err)
	}
	assert.True(t, sb.IsEmpty())
}

func TestInMemoryBuffer_NoAckRedelivers(t *testing.T) {
	ctx := context.Background()
	sb := NewInMemoryBuffer("test", 4, 0, WithReadTimeOut(50*time.Millisecond))

	sb.Write(ctx, testMessages("one"))
	msgs, err := sb.Read(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	sb.NoAck(ctx, []isb.Offset{msgs[0].ReadOffset})
	again, err := sb.Read(ctx, 1)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "one", string(again[0].Payload))
}

func TestInMemoryBuffer_DiscardLatestWhenFull(t *testing.T) {
	ctx := context.Background()
	sb := NewInMemoryBuffer("test", 2, 0, WithBufferFullWritingStrategy(DiscardLatest))

	_, errs := sb.Write(ctx, testMessages("one", "two", "three"))
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	require.Error(t, errs[2])
	writeErr, ok := errs[2].(isb.BufferWriteErr)
	require.True(t, ok)
	assert.True(t, writeErr.IsFull())
}

func TestInMemoryBuffer_BackpressureBlocksWriter(t *testing.T) {
	ctx := context.Background()
	sb := NewInMemoryBuffer("test", 1, 0, WithReadTimeOut(50*time.Millisecond))

	sb.Write(ctx, testMessages("one"))
	assert.True(t, sb.IsFull())

	done := make(chan struct{})
	go func() {
		defer close(done)
		// blocks until the consumer acks and frees the slot
		_, errs := sb.Write(ctx, testMessages("two"))
		assert.NoError(t, errs[0])
	}()

	select {
	case <-done:
		t.Fatal("write should have blocked on a full buffer")
	case <-time.After(20 * time.Millisecond):
	}

	msgs, err := sb.Read(ctx, 1)
	require.NoError(t, err)
	sb.Ack(ctx, []isb.Offset{msgs[0].ReadOffset})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write should have proceeded after the ack")
	}
}

func TestInMemoryBuffer_ReadTimeout(t *testing.T) {
	ctx := context.Background()
	sb := NewInMemoryBuffer("test", 4, 0, WithReadTimeOut(20*time.Millisecond))

	start := time.Now()
	msgs, err := sb.Read(ctx, 1)
	assert.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
