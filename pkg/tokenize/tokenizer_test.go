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

package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain_words",
			text: "the quick fox",
			want: []string{"the", "quick", "fox"},
		},
		{
			name: "apostrophes_kept",
			text: "don't stop believin'",
			want: []string{"don't", "stop", "believin'"},
		},
		{
			name: "punctuation_separates",
			text: "hello, world! again",
			want: []string{"hello", "world", "again"},
		},
		{
			name: "digits_separate",
			text: "abc123def",
			want: []string{"abc", "def"},
		},
		{
			name: "case_preserved",
			text: "To Be Or NOT",
			want: []string{"To", "Be", "Or", "NOT"},
		},
		{
			name: "leading_trailing_separators",
			text: "  ...the fox...  ",
			want: []string{"the", "fox"},
		},
		{
			name: "non_ascii_bytes_separate",
			text: "héllo wörld",
			want: []string{"h", "llo", "w", "rld"},
		},
		{
			name: "only_digits",
			text: "12345",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := New("test")
			got := tk.Tokenize(tt.text)
			assert.Equal(t, tt.want, got)
			for _, token := range got {
				assert.NotEmpty(t, token)
			}
		})
	}
}

func TestTokenizer_EmptyRecordCount(t *testing.T) {
	tk := New("test")
	assert.Nil(t, tk.Tokenize(""))
	assert.Nil(t, tk.Tokenize("   \t  "))
	assert.Equal(t, uint64(2), tk.EmptyRecordCount())

	// a record with no letters is not an empty record
	assert.Nil(t, tk.Tokenize("12345"))
	assert.Equal(t, uint64(2), tk.EmptyRecordCount())

	assert.Equal(t, []string{"fox"}, tk.Tokenize("fox"))
	assert.Equal(t, uint64(2), tk.EmptyRecordCount())
}
