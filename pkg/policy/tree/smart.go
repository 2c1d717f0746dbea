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

import (
	"math/rand"
	"sort"

	"github.com/clusterforge/sharpsim/pkg/conflictgraph"
	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
	"github.com/clusterforge/sharpsim/pkg/job"
)

// SmartPolicy keeps each job's candidate aggregation trees across calls
// and, on every call, builds a conflict graph over them and solves a
// maximum-weight independent set to decide which jobs get a SHARP tree
// this round. Unlike First/Random it mutates a batch of jobs at once
// rather than fitting the single-job policy.TreeFunc shape, matching the
// operator() signature of the policy it is grounded on.
//
// MaxTreeCount bounds how many closest-common-ancestor candidates are
// considered per job (nil means consider them all). MaxSharingJobCount
// and the lookahead parameters bound the optional merge pass (step 6):
// a MaxSharingJobCount below 2 disables the lookahead merge entirely.
type SmartPolicy struct {
	MaxTreeCount       *int
	MaxSharingJobCount int
	LookaheadSigma     float64
	LookaheadFloor     float64

	jobToTrees map[int][]*fattree.AggrTree
	trackers   map[int]*meanStdTracker
}

// NewSmartPolicy returns a SmartPolicy ready to use. A zero-value
// SmartPolicy also works; this constructor just documents the defaults.
func NewSmartPolicy(maxTreeCount *int, maxSharingJobCount int) *SmartPolicy {
	return &SmartPolicy{
		MaxTreeCount:       maxTreeCount,
		MaxSharingJobCount: maxSharingJobCount,
		LookaheadSigma:     1.0,
		LookaheadFloor:     0.0,
	}
}

type candidate struct {
	jobIdx int
	tree   *fattree.AggrTree
}

// BuildTrees assigns (or clears) the next aggregation tree of every job in
// the full job list (running ∪ new). Candidate trees are computed when a
// job first appears in newJobs and kept for later calls; conflicts are
// checked across all jobs' candidates, not just the new arrivals. Each
// job's next tree is set once per call, so keeping the same tree does not
// count as a migration.
func (p *SmartPolicy) BuildTrees(topology *fattree.Topology, resources *fatresource.Resources, jobs []*job.Job, newJobs []*job.Job, rng *rand.Rand) {
	if p.jobToTrees == nil {
		p.jobToTrees = make(map[int][]*fattree.AggrTree)
	}
	if p.trackers == nil {
		p.trackers = make(map[int]*meanStdTracker)
	}

	newJobSet := make(map[int]bool, len(newJobs))
	for _, j := range newJobs {
		newJobSet[j.ID] = true
	}
	assigned := make([]*fattree.AggrTree, len(jobs))

	var candidates []candidate
	for jobIdx, j := range jobs {
		if newJobSet[j.ID] {
			roots, err := topology.GetClosestCommonAncestors(j.Hosts())
			if err == nil {
				chosenRoots := roots
				if p.MaxTreeCount != nil && *p.MaxTreeCount < len(roots) {
					rng.Shuffle(len(roots), func(i, k int) { roots[i], roots[k] = roots[k], roots[i] })
					chosenRoots = roots[:*p.MaxTreeCount]
				}
				trees := make([]*fattree.AggrTree, 0, len(chosenRoots))
				for _, root := range chosenRoots {
					if tree, err := topology.GetAggregationTree(j.Hosts(), root); err == nil {
						trees = append(trees, tree)
					}
				}
				p.jobToTrees[j.ID] = trees
			}
		}
		for _, tree := range p.jobToTrees[j.ID] {
			candidates = append(candidates, candidate{jobIdx: jobIdx, tree: tree})
		}
	}

	graph := conflictgraph.New()
	for i, c := range candidates {
		graph.AddNode(i, int64(jobs[c.jobIdx].HostCount()))
	}
	for i := range candidates {
		for k := range candidates {
			if i == k {
				continue
			}
			if candidates[i].jobIdx == candidates[k].jobIdx || resources.CheckTreePairConflict(candidates[i].tree, candidates[k].tree) {
				graph.AddEdge(i, k)
			}
		}
	}

	mis := graph.CalcMaxIndependentSet(rng, conflictgraph.DefaultMaxIterations)

	misNeighborCount := make(map[int]int)
	claimed := make(map[int]bool)
	var centers []int
	for center := range mis {
		if !mis[center] {
			continue
		}
		centers = append(centers, center)
		claimed[candidates[center].jobIdx] = true
		for _, nb := range graph.Neighbors(center) {
			misNeighborCount[nb]++
		}
	}
	sort.Ints(centers)

	var sharingGroups [][]int
	for _, center := range centers {
		assigned[candidates[center].jobIdx] = candidates[center].tree
		group := []int{candidates[center].jobIdx}

		neighbors := graph.Neighbors(center)
		available := make([]bool, len(neighbors))
		for i, nb := range neighbors {
			if misNeighborCount[nb] == 1 && !claimed[candidates[nb].jobIdx] {
				available[i] = true
			}
		}
		for {
			maxHostCount, maxIdx := 0, -1
			for i, nb := range neighbors {
				if !available[i] {
					continue
				}
				hc := jobs[candidates[nb].jobIdx].HostCount()
				if hc > maxHostCount {
					maxHostCount, maxIdx = hc, i
				}
			}
			if maxIdx == -1 {
				break
			}
			chosen := neighbors[maxIdx]
			assigned[candidates[chosen].jobIdx] = candidates[chosen].tree
			claimed[candidates[chosen].jobIdx] = true
			group = append(group, candidates[chosen].jobIdx)
			available[maxIdx] = false
			for i, nb := range neighbors {
				if available[i] && candidates[nb].jobIdx == candidates[chosen].jobIdx {
					available[i] = false
				}
			}
		}
		sharingGroups = append(sharingGroups, group)
	}
	for jobIdx, j := range jobs {
		j.SetNextAggrTree(assigned[jobIdx])
	}

	if p.MaxSharingJobCount > 1 {
		p.lookaheadMerge(jobs, sharingGroups, claimed)
	}
}

// lookaheadMerge approximates spec.md's step 6 without a discrete-event
// sub-simulation per candidate merge (which would require re-entering the
// controller). It sorts the sharing groups by size and visits pairs whose
// combined size is at most MaxSharingJobCount, scoring each pair with
// estimateMergeImprovement over the later group of the pair. Scores are
// recorded in a meanStdTracker per combined job count; once a class has at
// least 8 samples and a non-positive UpperBound, its pairs are skipped. A
// pair with a positive score is merged in the local grouping and the scan
// restarts. The merged grouping is not applied: no job's next tree changes,
// and only the trackers keep state across calls.
func (p *SmartPolicy) lookaheadMerge(jobs []*job.Job, groups [][]int, claimed map[int]bool) {
	sort.Slice(groups, func(i, k int) bool { return len(groups[i]) < len(groups[k]) })

	merged := true
	for merged {
		merged = false
		for gi := 0; gi < len(groups); gi++ {
			for gk := gi + 1; gk < len(groups); gk++ {
				if len(groups[gi])+len(groups[gk]) > p.MaxSharingJobCount {
					continue
				}
				class := len(groups[gi]) + len(groups[gk])
				tracker := p.trackers[class]
				if tracker == nil {
					tracker = &meanStdTracker{}
					p.trackers[class] = tracker
				}
				if tracker.Count() >= 8 && tracker.UpperBound(p.LookaheadSigma, p.LookaheadFloor) <= 0 {
					continue
				}

				improvement := p.estimateMergeImprovement(jobs, groups[gi], groups[gk])
				tracker.Update(improvement)
				if improvement > 0 {
					groups[gi] = append(groups[gi], groups[gk]...)
					groups = append(groups[:gk], groups[gk+1:]...)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
	}
}

// estimateMergeImprovement returns the sum, over every job in b, of
// (idealJCTWithoutSharp - idealJCTWithSharp), a proxy for the JCT-score
// gain of bringing b's jobs into a's sharing group instead of leaving them
// unshared. Jobs are not weighted by host count, and a is not read. It is
// zero (no improvement) whenever b is empty.
func (p *SmartPolicy) estimateMergeImprovement(jobs []*job.Job, a, b []int) float64 {
	var improvement float64
	for _, idx := range b {
		j := jobs[idx]
		withSharp, withoutSharp := estimateIdealDurations(j)
		improvement += withoutSharp - withSharp
	}
	_ = a
	return improvement
}

func estimateIdealDurations(j *job.Job) (withSharp, withoutSharp float64) {
	for _, group := range j.Workload.CommOpGroups {
		for _, op := range group.CommOps {
			withSharp += j.CalcDuration(op.OpType, op.MessageSize, true, j.HostCount())
			withoutSharp += j.CalcDuration(op.OpType, op.MessageSize, false, j.HostCount())
		}
	}
	return withSharp, withoutSharp
}
