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

package sharing

import (
	"testing"

	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
	"github.com/clusterforge/sharpsim/pkg/job"
	"github.com/clusterforge/sharpsim/pkg/sharinggroup"
	"github.com/clusterforge/sharpsim/pkg/workload"
	"github.com/stretchr/testify/require"
)

func mustResources(t *testing.T) *fatresource.Resources {
	t.Helper()
	topo, err := fattree.NewFromDegree(3, 4)
	require.NoError(t, err)
	r, err := fatresource.New(topo, nil, nil)
	require.NoError(t, err)
	return r
}

func newTestJob(id int, hostCount int) *job.Job {
	wl := workload.Workload{
		HostCount: hostCount,
		StepCount: 1,
		CommOpGroups: []workload.CommOpGroup{
			{SyncTime: 0, CommOps: []workload.CommOp{{MessageSize: 1000, OpType: workload.AllReduce}}},
		},
	}
	return job.New(id, wl, func(_ workload.OpType, size uint64, useSharp bool, hostCount int) float64 {
		return float64(size)
	})
}

func TestNonSharpAlwaysTransmitsFullRemainingWithoutSharp(t *testing.T) {
	j := newTestJob(1, 4)
	res := NonSharp(nil, j, 0)
	require.False(t, res.UseSharp)
	require.Equal(t, uint64(1000), res.MessageSize)
}

func TestGreedyUsesSharpWhenTreeFreeAndNoMateActive(t *testing.T) {
	r := mustResources(t)
	hosts := r.Topology.Hosts()[:2]
	ancestors, err := r.Topology.GetClosestCommonAncestors(hosts)
	require.NoError(t, err)
	tr, err := r.Topology.GetAggregationTree(hosts, ancestors[0])
	require.NoError(t, err)

	j := newTestJob(1, 2)
	j.SetNextAggrTree(tr)
	sg := sharinggroup.New([]*job.Job{j}, func(sg *sharinggroup.SharingGroup, jj *job.Job, now float64) job.ScheduleResult {
		return job.ScheduleResult{}
	})

	p := &GreedyPolicy{Resources: r}
	res := p.Arbitrate(sg, j, 0)
	require.True(t, res.UseSharp)
	require.Equal(t, uint64(1000), res.MessageSize)
}

func TestGreedyRefusesSharpWhenTreeConflicts(t *testing.T) {
	r := mustResources(t)
	hosts := r.Topology.Hosts()[:2]
	ancestors, err := r.Topology.GetClosestCommonAncestors(hosts)
	require.NoError(t, err)
	tr, err := r.Topology.GetAggregationTree(hosts, ancestors[0])
	require.NoError(t, err)
	r.Allocate(tr)

	small := 1
	rr, err := fatresource.New(r.Topology, &small, &small)
	require.NoError(t, err)
	rr.Allocate(tr)

	j := newTestJob(1, 2)
	j.SetNextAggrTree(tr)
	sg := sharinggroup.New([]*job.Job{j}, func(sg *sharinggroup.SharingGroup, jj *job.Job, now float64) job.ScheduleResult {
		return job.ScheduleResult{}
	})

	p := &GreedyPolicy{Resources: rr}
	res := p.Arbitrate(sg, j, 0)
	require.False(t, res.UseSharp)
}

func TestSmartChunksLargeTransmissions(t *testing.T) {
	r := mustResources(t)
	hosts := r.Topology.Hosts()[:2]
	ancestors, err := r.Topology.GetClosestCommonAncestors(hosts)
	require.NoError(t, err)
	tr, err := r.Topology.GetAggregationTree(hosts, ancestors[0])
	require.NoError(t, err)

	j := newTestJob(1, 2)
	j.SetNextAggrTree(tr)
	sg := sharinggroup.New([]*job.Job{j}, func(sg *sharinggroup.SharingGroup, jj *job.Job, now float64) job.ScheduleResult {
		return job.ScheduleResult{}
	})

	p := &SmartPolicy{Resources: r, ChunkSize: 300}
	res := p.Arbitrate(sg, j, 0)
	require.True(t, res.UseSharp)
	require.Equal(t, uint64(300), res.MessageSize)
	require.Equal(t, 1, p.ConsensusCount)
}
