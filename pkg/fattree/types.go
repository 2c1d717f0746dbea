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

package fattree

// Node is a single switch or host in the fat-tree. Layer 0 holds hosts;
// layer Height holds the topmost switches. Indices has exactly Height
// entries; for position i, it is an up[i]-radix digit if i < Layer, and a
// down[i]-radix digit otherwise (see Topology.NodeID).
type Node struct {
	ID      int
	Layer   int
	Indices []int
}

// Edge connects Child (at some layer ℓ < Height) to Parent (at layer ℓ+1).
type Edge struct {
	ID     int
	Parent *Node
	Child  *Node
}

// AggrTree is an aggregation tree: the node/edge subset of the topology
// spanning a set of host leaves and rooted at one of their closest common
// ancestors. NodeSet/EdgeSet are bitsets over the full topology's node/edge
// ID space, sized once by the producing Topology, for O(1) membership
// tests used by conflict checks.
type AggrTree struct {
	Nodes   []*Node
	Edges   []*Edge
	Root    *Node
	NodeSet []bool
	EdgeSet []bool
}

// HasNode reports whether n belongs to the tree.
func (t *AggrTree) HasNode(n *Node) bool {
	return n != nil && n.ID < len(t.NodeSet) && t.NodeSet[n.ID]
}

// HasEdge reports whether e belongs to the tree.
func (t *AggrTree) HasEdge(e *Edge) bool {
	return e != nil && e.ID < len(t.EdgeSet) && t.EdgeSet[e.ID]
}

// Conflicts reports whether t and other share any node or edge, the
// quotas-at-most-one fast path used by pairwise conflict checks (see
// fatresource.Resources.CheckTreePairConflict).
func (t *AggrTree) Conflicts(other *AggrTree) bool {
	for _, n := range t.Nodes {
		if other.HasNode(n) {
			return true
		}
	}
	for _, e := range t.Edges {
		if other.HasEdge(e) {
			return true
		}
	}
	return false
}
