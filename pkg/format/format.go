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

// Package format renders completed tallies as output lines.
package format

import (
	"errors"
	"fmt"

	"github.com/dataradiant/streamcount/pkg/aggregate"
)

// ErrInvalidArgument is returned when Format is handed a nil record. This is
// a programming error on the caller's side and is never retried.
var ErrInvalidArgument = errors.New("invalid argument: nil count record")

// Format converts a completed (key, count) pair into an output line of the
// form "<key>: <count>". Pure, no side effects.
func Format(rec *aggregate.CountRecord) (string, error) {
	if rec == nil {
		return "", ErrInvalidArgument
	}
	return fmt.Sprintf("%s: %d", rec.Key, rec.Count), nil
}
