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
	"math"

	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
)

// SmartAllocator picks nHosts hosts to minimize cluster fragmentation: it
// prefers keeping whole pods either fully allocated or fully free over
// scattering a job's hosts thinly across many pods. Alpha is the score
// assigned to an entirely-available pod kept intact; a pod split across
// sub-pods to satisfy the request accumulates the sum of its sub-pods'
// scores instead, so Alpha trades off "prefer whole free pods" against
// "prefer tightly-packed placements" — tune upward to bias harder toward
// leaving large contiguous regions free for future large jobs.
type SmartAllocator struct {
	Alpha float64
}

type tryAllocateResult struct {
	score float64
	hosts []*fattree.Node
}

// Allocate implements policy.HostFunc.
func (a *SmartAllocator) Allocate(resources *fatresource.Resources, nRequired int) ([]*fattree.Node, bool) {
	topo := resources.Topology
	nAvail, result := a.tryAllocate(resources, 0, len(topo.Hosts()), topo.Height, nRequired)
	if nAvail < nRequired {
		return nil, false
	}
	return result[nRequired].hosts, true
}

// tryAllocate returns the number of available hosts in the pod spanning
// [beginHostIdx, beginHostIdx+hostCountInPod) at the given layer, and a
// table (indexed 0..nRequired) of the best (lowest-score) way to pick
// exactly that many hosts from the pod.
func (a *SmartAllocator) tryAllocate(resources *fatresource.Resources, beginHostIdx, hostCountInPod, level, nRequired int) (int, []tryAllocateResult) {
	hosts := resources.Topology.Hosts()
	result := make([]tryAllocateResult, nRequired+1)

	if level == 0 {
		if resources.NodeUsage(hosts[beginHostIdx].ID) > 0 {
			return 0, result
		}
		result[0] = tryAllocateResult{score: a.Alpha}
		if nRequired >= 1 {
			result[1] = tryAllocateResult{score: 1, hosts: []*fattree.Node{hosts[beginHostIdx]}}
		}
		return 1, result
	}

	hostCountInSubPod := hostCountInPod / resources.Topology.Down[level-1]
	nTotalAvail := 0
	for subBegin := beginHostIdx; subBegin < beginHostIdx+hostCountInPod; subBegin += hostCountInSubPod {
		nSubAvail, subResult := a.tryAllocate(resources, subBegin, hostCountInSubPod, level-1, nRequired)

		maxN := nTotalAvail + nSubAvail
		if maxN > nRequired {
			maxN = nRequired
		}
		for nHosts := maxN; nHosts >= 0; nHosts-- {
			lowI := nHosts - nTotalAvail
			if lowI < 0 {
				lowI = 0
			}
			highI := nSubAvail
			if nHosts < highI {
				highI = nHosts
			}
			minScore := math.Inf(1)
			minI := 0
			for i := lowI; i <= highI; i++ {
				j := nHosts - i
				if s := subResult[i].score + result[j].score; s < minScore {
					minScore, minI = s, i
				}
			}
			assembled := make([]*fattree.Node, 0, nHosts)
			assembled = append(assembled, result[nHosts-minI].hosts...)
			assembled = append(assembled, subResult[minI].hosts...)
			result[nHosts] = tryAllocateResult{score: minScore, hosts: assembled}
		}
		nTotalAvail += nSubAvail
	}

	if nTotalAvail == hostCountInPod {
		result[0].score = a.Alpha
		if hostCountInPod <= nRequired {
			result[hostCountInPod].score = 1
		}
	}
	return nTotalAvail, result
}
