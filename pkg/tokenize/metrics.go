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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/dataradiant/streamcount/pkg/metrics"
)

// emptyRecordsTotal is used to indicate the number of empty records seen
var emptyRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "tokenizer",
	Name:      "empty_records_total",
	Help:      "Total number of empty or whitespace-only records",
}, []string{metricspkg.LabelPipeline})
