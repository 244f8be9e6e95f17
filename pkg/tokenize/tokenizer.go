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

// Package tokenize splits raw text records into word tokens. A word is a
// maximal run of ASCII letters and apostrophes; everything else separates
// words. Case is preserved.
package tokenize

import (
	"strings"

	"go.uber.org/atomic"

	"github.com/dataradiant/streamcount/pkg/metrics"
)

// Tokenizer splits records and keeps a diagnostic count of empty records.
type Tokenizer struct {
	pipelineName string
	emptyRecords atomic.Uint64
}

// New returns a Tokenizer.
func New(pipelineName string) *Tokenizer {
	return &Tokenizer{pipelineName: pipelineName}
}

// isWordByte reports whether c belongs to the token alphabet. Multi-byte
// UTF-8 sequences (and invalid byte sequences) are entirely outside the
// alphabet, so they act as separators.
func isWordByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '\''
}

// Tokenize splits text on every maximal run of non-word bytes. It never
// yields an empty token. Empty and whitespace-only records yield no tokens
// and bump the empty-record counter.
func (t *Tokenizer) Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		t.emptyRecords.Inc()
		emptyRecordsTotal.With(map[string]string{metrics.LabelPipeline: t.pipelineName}).Inc()
		return nil
	}

	var tokens []string
	start := -1
	for i := 0; i < len(text); i++ {
		if isWordByte(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// EmptyRecordCount returns the number of empty or whitespace-only records
// seen so far. Monotone, safe for concurrent use.
func (t *Tokenizer) EmptyRecordCount() uint64 {
	return t.emptyRecords.Load()
}
