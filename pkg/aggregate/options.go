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
	"fmt"

	"go.uber.org/zap"
)

const defaultSideBuffer = 1024

// Option to apply different options to the Aggregator.
type Option func(*Aggregator) error

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(a *Aggregator) error {
		a.log = log
		return nil
	}
}

// WithPipelineName sets the pipeline name used in metric labels.
func WithPipelineName(name string) Option {
	return func(a *Aggregator) error {
		a.pipelineName = name
		return nil
	}
}

// WithLatePolicy sets the late data policy.
func WithLatePolicy(policy LatePolicy) Option {
	return func(a *Aggregator) error {
		switch policy {
		case LateDrop, LateSideOutput:
			a.policy = policy
			return nil
		default:
			return fmt.Errorf("unknown late data policy %q", policy)
		}
	}
}

// WithSideBuffer sets the capacity of the side output channel.
func WithSideBuffer(size int) Option {
	return func(a *Aggregator) error {
		if size <= 0 {
			return fmt.Errorf("invalid side buffer size %d, must be positive", size)
		}
		a.side = make(chan LateElement, size)
		return nil
	}
}
