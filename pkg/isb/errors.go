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

import "fmt"

// BufferWriteErr when we cannot write to the buffer.
type BufferWriteErr struct {
	Name        string
	Full        bool
	InternalErr bool
	Message     string
}

func (e BufferWriteErr) Error() string {
	return fmt.Sprintf("(%s) %s Full=%t InternalErr=%t", e.Name, e.Message, e.Full, e.InternalErr)
}

// IsFull returns true if the write failed because the buffer is full.
func (e BufferWriteErr) IsFull() bool {
	return e.Full
}

// BufferReadErr when we cannot read from the buffer.
type BufferReadErr struct {
	Name        string
	Empty       bool
	InternalErr bool
	Message     string
}

func (e BufferReadErr) Error() string {
	return fmt.Sprintf("(%s) %s Empty=%t InternalErr=%t", e.Name, e.Message, e.Empty, e.InternalErr)
}
