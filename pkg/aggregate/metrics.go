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

package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metricspkg "github.com/dataradiant/streamcount/pkg/metrics"
)

// windowsClosedTotal is used to indicate the number of windows completed
var windowsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "windows_closed_total",
	Help:      "Total number of windows completed and evicted",
}, []string{metricspkg.LabelPipeline})

// lateDroppedTotal is used to indicate the number of late elements dropped
var lateDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "late_dropped_total",
	Help:      "Total number of late elements dropped",
}, []string{metricspkg.LabelPipeline})

// lateSideOutputTotal is used to indicate the number of late elements sent to the side output
var lateSideOutputTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "aggregator",
	Name:      "late_side_output_total",
	Help:      "Total number of late elements delivered to the side output",
}, []string{metricspkg.LabelPipeline})
