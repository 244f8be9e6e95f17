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
	"time"
)

// Header is the header of the message.
type Header struct {
	// EventTime is the time the record arrived at the source.
	EventTime time.Time
	// ID is used for de-duplication on redelivery. ID is usually populated
	// from the offset, if offset is available.
	ID string
	// Keys is the partitioning keys of the record, if the source carries any.
	Keys []string
}

// Body is the body of the message.
type Body struct {
	Payload []byte
}

// Message is a raw text record flowing between the source and the pipeline.
type Message struct {
	Header
	Body
}

// ReadMessage is the message read from the source or buffer.
type ReadMessage struct {
	Message
	ReadOffset Offset
}

// ToReadMessage converts Message to a ReadMessage by providing the offset.
func (m *Message) ToReadMessage(ot Offset) *ReadMessage {
	return &ReadMessage{Message: *m, ReadOffset: ot}
}
