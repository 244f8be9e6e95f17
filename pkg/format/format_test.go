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

package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dataradiant/streamcount/pkg/aggregate"
)

func TestFormat(t *testing.T) {
	line, err := Format(&aggregate.CountRecord{Key: "fox", Count: 2})
	assert.NoError(t, err)
	assert.Equal(t, "fox: 2", line)

	line, err = Format(&aggregate.CountRecord{Key: "don't", Count: 1})
	assert.NoError(t, err)
	assert.Equal(t, "don't: 1", line)
}

func TestFormat_NilRecord(t *testing.T) {
	_, err := Format(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
