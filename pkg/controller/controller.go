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

// Package controller drives the global next-event simulation loop: it
// admits new jobs, builds aggregation trees and sharing groups, dispatches
// the earliest event across every sharing group, and accumulates the
// statistics reported at the end of a run.
package controller

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
	"github.com/clusterforge/sharpsim/pkg/job"
	"github.com/clusterforge/sharpsim/pkg/log"
	"github.com/clusterforge/sharpsim/pkg/policy"
	"github.com/clusterforge/sharpsim/pkg/policy/tree"
	"github.com/clusterforge/sharpsim/pkg/sharinggroup"
	"github.com/clusterforge/sharpsim/pkg/unionfind"
)

var logger = log.Get("controller")

// Source returns the next pending job and its arrival time, or ok=false
// once the source is exhausted.
type Source func() (j *job.Job, arrivalTime float64, ok bool)

// TreeBuildFunc assigns (or clears) each new job's next aggregation tree,
// given the full running-job list (so it can check conflicts against
// everyone's currently-kept trees) and the subset that just arrived.
type TreeBuildFunc func(topology *fattree.Topology, resources *fatresource.Resources, jobs []*job.Job, newJobs []*job.Job)

// AdaptTreeFunc lifts a per-job policy.TreeFunc (First, Random) into a
// TreeBuildFunc by looping it over every new job. Each new job's tree is
// checked against current resource usage only — not against other new
// jobs chosen in the same batch — matching the per-job policies' original
// behavior.
func AdaptTreeFunc(fn policy.TreeFunc) TreeBuildFunc {
	return func(topology *fattree.Topology, resources *fatresource.Resources, _ []*job.Job, newJobs []*job.Job) {
		for _, j := range newJobs {
			if tree, ok := fn(topology, resources, j.Hosts()); ok {
				j.SetNextAggrTree(tree)
			} else {
				j.SetNextAggrTree(nil)
			}
		}
	}
}

// AdaptSmartTreePolicy lifts tree.SmartPolicy.BuildTrees, which takes an
// extra *rand.Rand for its lookahead-merge scoring, into a TreeBuildFunc so
// it can be wired as a Controller's TreePolicy the same way First and
// Random are via AdaptTreeFunc.
func AdaptSmartTreePolicy(p *tree.SmartPolicy, rng *rand.Rand) TreeBuildFunc {
	return func(topology *fattree.Topology, resources *fatresource.Resources, jobs []*job.Job, newJobs []*job.Job) {
		p.BuildTrees(topology, resources, jobs, newJobs, rng)
	}
}

// Stats accumulates the counters and totals a finished simulation reports.
// JCTScore, SharpRatio, and SharpUtilization are derived from these by
// finalize and are not tracked incrementally.
type Stats struct {
	FinishedJobs   int
	Events         int
	TreeMigrations int
	SharpJobs      int
	ConsensusCalls int

	SimulatedTime float64

	TotalHostTime           float64
	TotalJCT                float64
	TotalJCTWithSharp       float64
	TotalJCTWithoutSharp    float64
	TotalSharpUsageHostTime float64

	// HostAllocationTimeMillis and TreeBuildingTimeMillis are wall-clock
	// costs of the controller's own admission work, not of the simulated
	// system, measured around the HostPolicy and TreePolicy calls.
	HostAllocationTimeMillis float64
	TreeBuildingTimeMillis   float64
}

// Result is the finalized, reportable outcome of a simulation run.
type Result struct {
	Stats

	ClusterUtilization float64
	JCTScore           float64
	SharpRatio         float64
	SharpUtilization   float64

	// ConsensusFrequency is ConsensusCalls normalized per simulated second
	// of total JCT. Zero when no sharing policy's ConsensusCounter was
	// wired, or when TotalJCT is zero.
	ConsensusFrequency float64
}

// Controller owns the resource counters, the running-job and
// sharing-group sets, and the policies that drive admission, tree
// building, and transmission arbitration.
type Controller struct {
	Topology  *fattree.Topology
	Resources *fatresource.Resources

	HostPolicy    policy.HostFunc
	TreePolicy    TreeBuildFunc
	SharingPolicy policy.SharingFunc

	// MaxSimulationTime, if set, stops the loop once now exceeds it;
	// still-running jobs contribute partial statistics at that point.
	MaxSimulationTime *float64

	// ConsensusCounter, if set, reports the consensus-protocol call count
	// of the sharing policy in use (only sharing/smart implements one; it
	// must be the same instance passed as SharingPolicy). Left nil for
	// policies that never run a consensus protocol, so ConsensusCalls and
	// ConsensusFrequency report zero.
	ConsensusCounter policy.ConsensusCounter

	source      Source
	runningJobs []*job.Job
	groups      []*sharinggroup.SharingGroup

	nextJob            *job.Job
	nextJobArrivalTime float64
	hasNextJob         bool

	everUsedSharp map[int]bool
	stats         Stats
}

// New constructs a Controller and pre-fetches the first pending job from
// source.
func New(topology *fattree.Topology, resources *fatresource.Resources, source Source, hostPolicy policy.HostFunc, treePolicy TreeBuildFunc, sharingPolicy policy.SharingFunc) *Controller {
	c := &Controller{
		Topology:      topology,
		Resources:     resources,
		HostPolicy:    hostPolicy,
		TreePolicy:    treePolicy,
		SharingPolicy: sharingPolicy,
		source:        source,
		everUsedSharp: make(map[int]bool),
	}
	c.nextJob, c.nextJobArrivalTime, c.hasNextJob = source()
	return c
}

// RunNewJobs repeatedly admits the pending job while the host policy can
// place it and it has already arrived (arrivalTime <= now), then rebuilds
// trees and sharing groups if anything changed.
func (c *Controller) RunNewJobs(now float64, rebuildSharingGroups bool) {
	var newJobs []*job.Job
	for c.hasNextJob && c.nextJobArrivalTime <= now {
		start := time.Now()
		hosts, ok := c.HostPolicy(c.Resources, c.nextJob.Workload.HostCount)
		c.stats.HostAllocationTimeMillis += float64(time.Since(start).Microseconds()) / 1000
		if !ok {
			break
		}
		c.Resources.AllocateHosts(hosts)
		c.nextJob.SetHosts(hosts)
		newJobs = append(newJobs, c.nextJob)
		c.runningJobs = append(c.runningJobs, c.nextJob)
		c.nextJob, c.nextJobArrivalTime, c.hasNextJob = c.source()
	}
	if len(newJobs) > 0 {
		start := time.Now()
		c.TreePolicy(c.Topology, c.Resources, c.runningJobs, newJobs)
		c.stats.TreeBuildingTimeMillis += float64(time.Since(start).Microseconds()) / 1000
	}
	if len(newJobs) > 0 || rebuildSharingGroups {
		c.buildSharingGroups()
	}
}

// buildSharingGroups partitions running jobs into equivalence classes via
// union-find over pairwise next-tree conflicts, then materializes each
// class as a SharingGroup with the resource allocate/deallocate hooks
// installed on every transmission.
func (c *Controller) buildSharingGroups() {
	uf := unionfind.New(len(c.runningJobs))
	for i := 0; i < len(c.runningJobs); i++ {
		tree1 := c.runningJobs[i].AggrTree()
		if tree1 == nil {
			continue
		}
		for k := i + 1; k < len(c.runningJobs); k++ {
			tree2 := c.runningJobs[k].AggrTree()
			if tree2 == nil {
				continue
			}
			if c.Resources.CheckTreePairConflict(tree1, tree2) {
				uf.Union(i, k)
			}
		}
	}

	groups := uf.Groups()
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	c.groups = nil
	for _, root := range roots {
		indices := groups[root]
		jobs := make([]*job.Job, len(indices))
		for i, idx := range indices {
			jobs[i] = c.runningJobs[idx]
		}
		sg := sharinggroup.New(jobs, c.SharingPolicy)
		sg.SetBeforeTransmissionCallback(func(j *job.Job, now float64, useSharp bool) {
			if !useSharp {
				return
			}
			tree := j.AggrTree()
			if tree == nil {
				logger.Error("job %d: sharing policy authorized SHARP with no tree assigned", j.ID)
				panic("controller: SHARP authorized without an aggregation tree")
			}
			c.Resources.Allocate(tree)
			if !c.everUsedSharp[j.ID] {
				c.everUsedSharp[j.ID] = true
				c.stats.SharpJobs++
			}
		})
		sg.SetAfterTransmissionCallback(func(j *job.Job, now float64, useSharp bool) {
			if !useSharp {
				return
			}
			tree := j.AggrTree()
			c.Resources.Deallocate(tree)
			c.stats.TotalSharpUsageHostTime += j.LastTransmissionDuration() * float64(switchNodeCount(tree))
		})
		c.groups = append(c.groups, sg)
	}
}

func switchNodeCount(tree *fattree.AggrTree) int {
	n := 0
	for _, node := range tree.Nodes {
		if node.Layer > 0 {
			n++
		}
	}
	return n
}

// getNextEvent scans every sharing group for the earliest next event.
func (c *Controller) getNextEvent(now float64) (float64, *job.Job, *sharinggroup.SharingGroup) {
	var nearestTime float64
	var nearestJob *job.Job
	var nearestGroup *sharinggroup.SharingGroup
	for _, g := range c.groups {
		t, j := g.GetNextEvent(now)
		if nearestJob == nil || t < nearestTime {
			nearestTime, nearestJob, nearestGroup = t, j, g
		}
	}
	if nearestJob == nil {
		invariant("controller: getNextEvent called with no running jobs")
	}
	return nearestTime, nearestJob, nearestGroup
}

// Run drives the simulation to completion (or until MaxSimulationTime),
// returning the finalized result.
func (c *Controller) Run() Result {
	now := 0.0
	c.RunNewJobs(now, false)
	for len(c.runningJobs) > 0 && (c.MaxSimulationTime == nil || now <= *c.MaxSimulationTime) {
		nextTime, j, group := c.getNextEvent(now)
		if nextTime < now {
			invariant("controller: next event time %.6f precedes now %.6f", nextTime, now)
		}
		if c.hasNextJob && now <= c.nextJobArrivalTime && c.nextJobArrivalTime < nextTime {
			now = c.nextJobArrivalTime
			c.RunNewJobs(now, true)
			continue
		}
		now = nextTime
		c.stats.Events++
		finished := group.RunNextEvent(now, j)
		if finished {
			c.stats.FinishedJobs++
			c.stats.TreeMigrations += j.Migrations()
			c.stats.TotalHostTime += (j.JobFinishTime() - j.JobStartTime()) * float64(j.Workload.HostCount)
			c.stats.TotalJCT += j.JobFinishTime() - j.JobStartTime()
			c.stats.TotalJCTWithSharp += j.JobDurationWithSharp()
			c.stats.TotalJCTWithoutSharp += j.JobDurationWithoutSharp()

			c.Resources.DeallocateHosts(j.Hosts())
			c.removeRunningJob(j)
			c.RunNewJobs(now, true)
		}
	}

	for _, j := range c.runningJobs {
		c.stats.TotalHostTime += (now - j.JobStartTime()) * float64(j.Workload.HostCount)
		c.stats.TotalJCT += j.CurrentGroupStartTime() - j.JobStartTime()
		c.stats.TotalJCTWithSharp += j.JobDurationWithSharp()
		c.stats.TotalJCTWithoutSharp += j.JobDurationWithoutSharp()
	}
	c.stats.SimulatedTime = now
	return c.finalize(now)
}

func (c *Controller) removeRunningJob(j *job.Job) {
	for i, rj := range c.runningJobs {
		if rj == j {
			c.runningJobs = append(c.runningJobs[:i], c.runningJobs[i+1:]...)
			return
		}
	}
}

func (c *Controller) finalize(now float64) Result {
	res := Result{Stats: c.stats}
	if c.ConsensusCounter != nil {
		res.ConsensusCalls = c.ConsensusCounter.ConsensusCalls()
	}

	hostCount := len(c.Topology.Hosts())
	if now > 0 && hostCount > 0 {
		res.ClusterUtilization = c.stats.TotalHostTime / (now * float64(hostCount))
	}

	if denom := c.stats.TotalJCTWithSharp - c.stats.TotalJCTWithoutSharp; denom != 0 {
		res.JCTScore = (c.stats.TotalJCT - c.stats.TotalJCTWithoutSharp) / denom
	}
	if c.stats.TotalJCT != 0 {
		res.SharpRatio = c.stats.TotalJCTWithSharp / c.stats.TotalJCT
		res.ConsensusFrequency = float64(res.ConsensusCalls) / c.stats.TotalJCT
	}
	if c.Resources.NodeQuota != nil && now > 0 {
		if switchCount := len(c.Topology.Nodes) - hostCount; switchCount > 0 {
			res.SharpUtilization = c.stats.TotalSharpUsageHostTime / (now * float64(switchCount))
		}
	}
	return res
}

type invariantError struct{ msg string }

func (e *invariantError) Error() string { return e.msg }

func invariant(format string, args ...interface{}) {
	err := &invariantError{msg: fmt.Sprintf(format, args...)}
	logger.Error(err.msg)
	panic(err)
}
