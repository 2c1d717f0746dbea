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

package fatresource

import (
	"testing"

	"github.com/clusterforge/sharpsim/pkg/fattree"
	"github.com/stretchr/testify/require"
)

func mustTopology(t *testing.T) *fattree.Topology {
	t.Helper()
	topo, err := fattree.NewFromDegree(3, 4)
	require.NoError(t, err)
	return topo
}

func TestAllocateDeallocateRoundTrip(t *testing.T) {
	topo := mustTopology(t)
	r, err := New(topo, nil, nil)
	require.NoError(t, err)

	hosts := topo.Hosts()
	leaves := []*fattree.Node{hosts[0], hosts[1]}
	ancestors, err := topo.GetClosestCommonAncestors(leaves)
	require.NoError(t, err)
	tree, err := topo.GetAggregationTree(leaves, ancestors[0])
	require.NoError(t, err)

	r.Allocate(tree)
	for _, n := range tree.Nodes {
		if n.Layer == 0 {
			require.Equal(t, 0, r.NodeUsage(n.ID))
			continue
		}
		require.Equal(t, 1, r.NodeUsage(n.ID))
	}
	for _, e := range tree.Edges {
		require.Equal(t, 1, r.EdgeUsage(e.ID))
	}

	r.Deallocate(tree)
	for _, n := range tree.Nodes {
		require.Equal(t, 0, r.NodeUsage(n.ID))
	}
	for _, e := range tree.Edges {
		require.Equal(t, 0, r.EdgeUsage(e.ID))
	}
}

func TestCheckTreeConflictRespectsQuota(t *testing.T) {
	topo := mustTopology(t)
	quota := 1
	r, err := New(topo, &quota, nil)
	require.NoError(t, err)

	hosts := topo.Hosts()
	leaves := []*fattree.Node{hosts[0], hosts[1]}
	ancestors, err := topo.GetClosestCommonAncestors(leaves)
	require.NoError(t, err)
	tree, err := topo.GetAggregationTree(leaves, ancestors[0])
	require.NoError(t, err)

	require.False(t, r.CheckTreeConflict(tree))
	r.Allocate(tree)
	require.True(t, r.CheckTreeConflict(tree))
}

func TestCheckTreePairConflictIgnoresHighQuota(t *testing.T) {
	topo := mustTopology(t)
	quota := 2
	r, err := New(topo, &quota, nil)
	require.NoError(t, err)

	hosts := topo.Hosts()
	leaves1 := []*fattree.Node{hosts[0], hosts[1]}
	leaves2 := []*fattree.Node{hosts[2], hosts[3]}
	a1, err := topo.GetClosestCommonAncestors(leaves1)
	require.NoError(t, err)
	a2, err := topo.GetClosestCommonAncestors(leaves2)
	require.NoError(t, err)
	t1, err := topo.GetAggregationTree(leaves1, a1[0])
	require.NoError(t, err)
	t2, err := topo.GetAggregationTree(leaves2, a2[0])
	require.NoError(t, err)

	require.False(t, r.CheckTreePairConflict(t1, t2))
}

func TestDeallocateUnderflowPanics(t *testing.T) {
	topo := mustTopology(t)
	r, err := New(topo, nil, nil)
	require.NoError(t, err)

	hosts := topo.Hosts()
	leaves := []*fattree.Node{hosts[0], hosts[1]}
	ancestors, err := topo.GetClosestCommonAncestors(leaves)
	require.NoError(t, err)
	tree, err := topo.GetAggregationTree(leaves, ancestors[0])
	require.NoError(t, err)

	require.Panics(t, func() { r.Deallocate(tree) })
}

func TestCalcHostFragmentsAllAvailable(t *testing.T) {
	topo := mustTopology(t)
	r, err := New(topo, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, r.CalcHostFragments(true))
	require.Equal(t, 0, r.CalcHostFragments(false))
}

func TestCalcHostFragmentsSplitsOnPartialOccupancy(t *testing.T) {
	topo := mustTopology(t)
	r, err := New(topo, nil, nil)
	require.NoError(t, err)

	hosts := topo.Hosts()
	r.AllocateHosts([]*fattree.Node{hosts[0]})

	available := r.CalcHostFragments(true)
	occupied := r.CalcHostFragments(false)
	require.Equal(t, 1, occupied)
	require.True(t, available >= 1)
}
