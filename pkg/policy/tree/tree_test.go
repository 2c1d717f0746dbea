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
	"testing"

	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
	"github.com/clusterforge/sharpsim/pkg/job"
	"github.com/clusterforge/sharpsim/pkg/workload"
	"github.com/stretchr/testify/require"
)

func mustResources(t *testing.T) (*fattree.Topology, *fatresource.Resources) {
	t.Helper()
	topo, err := fattree.NewFromDegree(3, 4)
	require.NoError(t, err)
	r, err := fatresource.New(topo, nil, nil)
	require.NoError(t, err)
	return topo, r
}

func TestFirstBuildsConflictFreeTree(t *testing.T) {
	topo, r := mustResources(t)
	hosts := topo.Hosts()[:2]
	tr, ok := First(topo, r, hosts)
	require.True(t, ok)
	require.False(t, r.CheckTreeConflict(tr))
}

func TestFirstFailsWhenEveryCandidateConflicts(t *testing.T) {
	topo, _ := mustResources(t)
	nodeQuota := 1
	r, err := fatresource.New(topo, &nodeQuota, nil)
	require.NoError(t, err)
	hosts := topo.Hosts()[:2]
	roots, err := topo.GetClosestCommonAncestors(hosts)
	require.NoError(t, err)
	for _, root := range roots {
		tr, err := topo.GetAggregationTree(hosts, root)
		require.NoError(t, err)
		r.Allocate(tr)
	}
	_, ok := First(topo, r, hosts)
	require.False(t, ok)
}

func TestRandomAllocatorBuildsConflictFreeTree(t *testing.T) {
	topo, r := mustResources(t)
	hosts := topo.Hosts()[:2]
	a := &RandomAllocator{Rng: rand.New(rand.NewSource(3))}
	tr, ok := a.Allocate(topo, r, hosts)
	require.True(t, ok)
	require.False(t, r.CheckTreeConflict(tr))
}

func newTestJob(id int, hosts []*fattree.Node) *job.Job {
	wl := workload.Workload{
		HostCount: len(hosts),
		StepCount: 1,
		CommOpGroups: []workload.CommOpGroup{
			{SyncTime: 0, CommOps: []workload.CommOp{{MessageSize: 100, OpType: workload.AllReduce}}},
		},
	}
	j := job.New(id, wl, func(_ workload.OpType, size uint64, useSharp bool, hostCount int) float64 {
		if useSharp {
			return float64(size) / 2
		}
		return float64(size)
	})
	j.SetHosts(hosts)
	return j
}

func TestSmartPolicyAssignsDisjointJobsIndependentTrees(t *testing.T) {
	topo, r := mustResources(t)
	hosts := topo.Hosts()
	j1 := newTestJob(1, hosts[0:2])
	j2 := newTestJob(2, hosts[8:10])
	jobs := []*job.Job{j1, j2}

	p := NewSmartPolicy(nil, 0)
	p.BuildTrees(topo, r, jobs, jobs, rand.New(rand.NewSource(42)))

	require.NotNil(t, j1.AggrTree())
	require.NotNil(t, j2.AggrTree())
	require.False(t, r.CheckTreePairConflict(j1.AggrTree(), j2.AggrTree()))
}

func TestSmartPolicyAssignsTreeToLoneJob(t *testing.T) {
	topo, r := mustResources(t)
	hosts := topo.Hosts()[:2]
	j1 := newTestJob(1, hosts)
	p := NewSmartPolicy(nil, 0)
	p.BuildTrees(topo, r, []*job.Job{j1}, []*job.Job{j1}, rand.New(rand.NewSource(1)))
	require.NotNil(t, j1.AggrTree())
}
