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

package host

import (
	"math/rand"

	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
)

// RandomAllocator picks nHosts unused hosts uniformly at random, seeded
// from the simulation's single source of randomness (see spec.md §9's
// determinism requirement: every random choice threads through the same
// rng rather than a fresh one per call).
type RandomAllocator struct {
	Rng *rand.Rand
}

// Allocate implements policy.HostFunc.
func (a *RandomAllocator) Allocate(resources *fatresource.Resources, nHosts int) ([]*fattree.Node, bool) {
	var available []*fattree.Node
	for _, h := range resources.Topology.Hosts() {
		if resources.NodeUsage(h.ID) == 0 {
			available = append(available, h)
		}
	}
	if len(available) < nHosts {
		return nil, false
	}
	a.Rng.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })
	return available[:nHosts], true
}
