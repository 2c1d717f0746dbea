// Copyright 2024 The sharpsim Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tree

import "math"

// meanStdTracker accumulates a running mean and standard deviation via
// Welford's online algorithm, used to bound the lookahead merge search:
// once a job-count class has at least 8 samples and its UpperBound is not
// positive, pairs of that class are skipped instead of scored.
type meanStdTracker struct {
	count int
	mean  float64
	m2    float64
}

func (t *meanStdTracker) Update(value float64) {
	if math.IsNaN(value) {
		return
	}
	t.count++
	delta1 := value - t.mean
	t.mean += delta1 / float64(t.count)
	delta2 := value - t.mean
	t.m2 += delta1 * delta2
}

func (t *meanStdTracker) Count() int { return t.count }
func (t *meanStdTracker) Mean() float64 { return t.mean }

func (t *meanStdTracker) Std() float64 {
	if t.count == 0 {
		return 0
	}
	return math.Sqrt(t.m2 / float64(t.count))
}

// UpperBound returns an optimistic estimate of the best improvement still
// reachable for this class: mean plus sigma standard deviations, floored
// so a class with very few samples isn't pruned prematurely.
func (t *meanStdTracker) UpperBound(sigma, floor float64) float64 {
	if t.count == 0 {
		return math.Inf(1)
	}
	bound := t.mean + sigma*t.Std()
	if bound < floor {
		return floor
	}
	return bound
}
