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

package conflictgraph

import (
	"math/rand"
	"sort"
)

// DefaultMaxIterations bounds the local-search pass of CalcMaxIndependentSet
// when the caller doesn't need a tighter budget.
const DefaultMaxIterations = 1000

// CalcMaxIndependentSet returns an approximate maximum-weight independent
// set: a greedy weight-ordered construction (ties broken by rng, for
// reproducibility under a fixed seed) followed by a bounded local-search
// pass that swaps up to 3 excluded neighbors back out in favor of one
// higher-weight node whenever that strictly improves the total weight.
//
// This replaces shelling out to an external solver binary: the original
// implementation this module is derived from invoked one, but nothing here
// depends on an external process, and local search converges quickly on
// the small, sparse conflict graphs a single simulation step produces.
func (cg *Graph) CalcMaxIndependentSet(rng *rand.Rand, maxIterations int) map[int]bool {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	order := cg.Nodes()
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	sort.SliceStable(order, func(i, j int) bool { return cg.weights[order[i]] > cg.weights[order[j]] })

	inSet := make(map[int]bool, len(order))
	excluded := make(map[int]bool, len(order))
	for _, id := range order {
		if excluded[id] {
			continue
		}
		inSet[id] = true
		for _, nb := range cg.Neighbors(id) {
			excluded[nb] = true
		}
	}

	for iter := 0; iter < maxIterations; iter++ {
		improved := false
		for _, id := range order {
			if inSet[id] {
				continue
			}
			neighbors := cg.Neighbors(id)
			if len(neighbors) > 3 {
				continue
			}
			var blockingSum int64
			blocking := neighbors[:0:0]
			for _, nb := range neighbors {
				if inSet[nb] {
					blocking = append(blocking, nb)
					blockingSum += cg.weights[nb]
				}
			}
			if cg.weights[id] <= blockingSum {
				continue
			}
			for _, nb := range blocking {
				delete(inSet, nb)
			}
			inSet[id] = true
			improved = true
		}
		if !improved {
			break
		}
	}
	return inSet
}

// TotalWeight sums the node weight of every id in set.
func (cg *Graph) TotalWeight(set map[int]bool) int64 {
	var total int64
	for id := range set {
		total += cg.weights[id]
	}
	return total
}
