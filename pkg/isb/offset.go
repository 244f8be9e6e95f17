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

package isb

import (
	"fmt"
)

// Offset is an interface used in the ReadMessage referencing offset information.
type Offset interface {
	// String returns the offset identifier.
	String() string
	// Sequence returns a sequence id which can be used to index into the buffer.
	Sequence() (int64, error)
	// AckIt is used to ack the offset. This is often used when the reader
	// cannot simply use the offset identifier to ack the message.
	AckIt() error
	// NoAck to indicate the offset no longer needs to be acknowledged. It is
	// used when an error occurs and we want the batch redelivered.
	NoAck() error
	// PartitionIdx returns the partition index to which the offset belongs.
	PartitionIdx() int32
}

// SimpleStringOffset is an Offset with a synthetic string identity, used by
// sources whose broker tracks delivery itself (NATS, generator).
type SimpleStringOffset struct {
	id        string
	seq       int64
	partition int32
}

var _ Offset = (*SimpleStringOffset)(nil)

// NewSimpleStringOffset returns a new SimpleStringOffset.
func NewSimpleStringOffset(id string, seq int64, partition int32) *SimpleStringOffset {
	return &SimpleStringOffset{id: id, seq: seq, partition: partition}
}

func (o *SimpleStringOffset) String() string {
	return fmt.Sprintf("%s-%d-%d", o.id, o.partition, o.seq)
}

func (o *SimpleStringOffset) Sequence() (int64, error) {
	return o.seq, nil
}

// AckIt acking is taken care of by the broker.
func (o *SimpleStringOffset) AckIt() error {
	return nil
}

func (o *SimpleStringOffset) NoAck() error {
	return nil
}

func (o *SimpleStringOffset) PartitionIdx() int32 {
	return o.partition
}
