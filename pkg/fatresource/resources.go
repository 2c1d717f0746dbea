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
	"fmt"

	"github.com/clusterforge/sharpsim/pkg/fattree"
	"github.com/pkg/errors"
)

// InvariantError marks a violated bookkeeping invariant (double
// allocation, negative decrement, quota overrun on an unchecked path):
// programming errors, not expected runtime conditions, so callers that
// hit them should fix the caller rather than handle the panic.
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string { return e.msg }

func invariant(format string, args ...interface{}) {
	panic(&InvariantError{msg: fmt.Sprintf(format, args...)})
}

// Resources tracks per-node and per-edge usage counts over a topology,
// with optional quotas capping concurrent usage of any single node or
// edge. A nil quota means unlimited.
type Resources struct {
	Topology  *fattree.Topology
	NodeQuota *int
	LinkQuota *int

	nodeUsage []int
	edgeUsage []int
}

// New builds a Resources tracker over topology, all counters at zero.
func New(topology *fattree.Topology, nodeQuota, linkQuota *int) (*Resources, error) {
	if nodeQuota != nil && *nodeQuota <= 0 {
		return nil, errors.Errorf("fatresource: nodeQuota must be > 0, got %d", *nodeQuota)
	}
	if linkQuota != nil && *linkQuota <= 0 {
		return nil, errors.Errorf("fatresource: linkQuota must be > 0, got %d", *linkQuota)
	}
	return &Resources{
		Topology:  topology,
		NodeQuota: nodeQuota,
		LinkQuota: linkQuota,
		nodeUsage: make([]int, topology.NumNodes()),
		edgeUsage: make([]int, topology.NumEdges()),
	}, nil
}

// NodeUsage returns the current usage count of node id.
func (r *Resources) NodeUsage(id int) int { return r.nodeUsage[id] }

// EdgeUsage returns the current usage count of edge id.
func (r *Resources) EdgeUsage(id int) int { return r.edgeUsage[id] }

// Allocate increments usage for every non-host node and every edge of
// tree. Host (layer-0) nodes are not resources shared across trees; their
// occupancy is tracked separately via AllocateHosts. Callers must have
// already established the allocation does not violate quotas (e.g. via
// CheckTreeConflict); a quota overrun here is an invariant violation.
func (r *Resources) Allocate(tree *fattree.AggrTree) {
	for _, n := range tree.Nodes {
		if n.Layer == 0 {
			continue
		}
		if r.NodeQuota != nil && r.nodeUsage[n.ID] >= *r.NodeQuota {
			invariant("fatresource: node %d already at quota %d", n.ID, *r.NodeQuota)
		}
		r.nodeUsage[n.ID]++
	}
	for _, e := range tree.Edges {
		if r.LinkQuota != nil && r.edgeUsage[e.ID] >= *r.LinkQuota {
			invariant("fatresource: edge %d already at quota %d", e.ID, *r.LinkQuota)
		}
		r.edgeUsage[e.ID]++
	}
}

// AllocateHosts increments usage for a set of host nodes directly, used
// when placing a job's ranks without reference to an aggregation tree.
func (r *Resources) AllocateHosts(hosts []*fattree.Node) {
	for _, n := range hosts {
		if n.Layer != 0 {
			invariant("fatresource: AllocateHosts given non-host node %d (layer %d)", n.ID, n.Layer)
		}
		if r.NodeQuota != nil && r.nodeUsage[n.ID] >= *r.NodeQuota {
			invariant("fatresource: host %d already at quota %d", n.ID, *r.NodeQuota)
		}
		r.nodeUsage[n.ID]++
	}
}

// Deallocate reverses a prior Allocate(tree).
func (r *Resources) Deallocate(tree *fattree.AggrTree) {
	for _, n := range tree.Nodes {
		if n.Layer == 0 {
			continue
		}
		if r.nodeUsage[n.ID] <= 0 {
			invariant("fatresource: node %d usage already zero", n.ID)
		}
		r.nodeUsage[n.ID]--
	}
	for _, e := range tree.Edges {
		if r.edgeUsage[e.ID] <= 0 {
			invariant("fatresource: edge %d usage already zero", e.ID)
		}
		r.edgeUsage[e.ID]--
	}
}

// DeallocateHosts reverses a prior AllocateHosts.
func (r *Resources) DeallocateHosts(hosts []*fattree.Node) {
	for _, n := range hosts {
		if r.nodeUsage[n.ID] <= 0 {
			invariant("fatresource: host %d usage already zero", n.ID)
		}
		r.nodeUsage[n.ID]--
	}
}

// CheckTreeConflict reports whether allocating tree would push any of its
// non-host nodes or edges over quota.
func (r *Resources) CheckTreeConflict(tree *fattree.AggrTree) bool {
	if r.NodeQuota != nil {
		for _, n := range tree.Nodes {
			if n.Layer == 0 {
				continue
			}
			if r.nodeUsage[n.ID] >= *r.NodeQuota {
				return true
			}
		}
	}
	if r.LinkQuota != nil {
		for _, e := range tree.Edges {
			if r.edgeUsage[e.ID] >= *r.LinkQuota {
				return true
			}
		}
	}
	return false
}

// CheckTreePairConflict reports whether two hypothetical trees conflict,
// that is, whether allocating both would overrun a quota, considering only
// each other and ignoring the current usage counters. It returns true when
// the trees share a node and the node quota is below 2, or share an edge
// and the link quota is below 2; otherwise it returns false.
func (r *Resources) CheckTreePairConflict(tree1, tree2 *fattree.AggrTree) bool {
	if r.NodeQuota != nil && *r.NodeQuota < 2 {
		for _, n := range tree1.Nodes {
			if tree2.HasNode(n) {
				return true
			}
		}
	}
	if r.LinkQuota != nil && *r.LinkQuota < 2 {
		for _, e := range tree1.Edges {
			if tree2.HasEdge(e) {
				return true
			}
		}
	}
	return false
}

// CalcHostFragments counts the number of maximal contiguous pod fragments
// whose hosts are all either available (available=true) or all occupied
// (available=false), recursing pod-by-pod down the topology. A fragment
// straddling both is split recursively at the next level down until it
// resolves into uniform sub-fragments.
func (r *Resources) CalcHostFragments(available bool) int {
	hosts := r.Topology.Hosts()
	return r.calcHostFragments(available, 0, len(hosts), r.Topology.Height)
}

func (r *Resources) calcHostFragments(available bool, beginHostIdx, hostCountInPod, level int) int {
	hosts := r.Topology.Hosts()
	allAvailable, noneAvailable := true, true
	for i := beginHostIdx; i < beginHostIdx+hostCountInPod; i++ {
		if r.nodeUsage[hosts[i].ID] == 0 {
			noneAvailable = false
		} else {
			allAvailable = false
		}
	}
	if allAvailable {
		if available {
			return 1
		}
		return 0
	}
	if noneAvailable {
		if available {
			return 0
		}
		return 1
	}
	if level <= 0 || hostCountInPod <= 1 {
		invariant("fatresource: CalcHostFragments hit a mixed leaf pod at level %d", level)
	}
	hostCountInSubPod := hostCountInPod / r.Topology.Down[level-1]
	sum := 0
	for sub := beginHostIdx; sub < beginHostIdx+hostCountInPod; sub += hostCountInSubPod {
		sum += r.calcHostFragments(available, sub, hostCountInSubPod, level-1)
	}
	return sum
}
