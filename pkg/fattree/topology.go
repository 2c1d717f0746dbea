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

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Topology is a fixed-height fat-tree: Height layers of switches above a
// layer of hosts, wired by per-layer down/up fan-out counts. It is built
// once by New or NewFromDegree and is read-only thereafter.
type Topology struct {
	Height int
	Down   []int
	Up     []int

	Nodes        []*Node
	NodesByLayer [][]*Node
	Edges        []*Edge
	EdgesByLayer [][]*Edge

	nodeLayerPrefix []int
	edgeLayerPrefix []int
	layerSize       []int
}

// New builds a Topology with Height = len(down) = len(up), and per-level
// down[i]/up[i] fan-out. down[i] is the number
// of children a layer-(i+1) node has at layer i; up[i] is the number of
// parents a layer-i node has at layer i+1.
func New(down, up []int) (*Topology, error) {
	if len(down) != len(up) {
		return nil, errors.Errorf("fattree: len(down)=%d != len(up)=%d", len(down), len(up))
	}
	height := len(down)
	if height < 1 {
		return nil, errors.New("fattree: height must be >= 1")
	}
	var result error
	for i := 0; i < height; i++ {
		if down[i] < 1 {
			result = multierror.Append(result, errors.Errorf("fattree: down[%d]=%d must be >= 1", i, down[i]))
		}
		if up[i] < 1 {
			result = multierror.Append(result, errors.Errorf("fattree: up[%d]=%d must be >= 1", i, up[i]))
		}
	}
	if result != nil {
		return nil, result
	}

	t := &Topology{
		Height: height,
		Down:   append([]int(nil), down...),
		Up:     append([]int(nil), up...),
	}
	t.build()
	return t, nil
}

// NewFromDegree builds the canonical symmetric fat-tree of the given
// switch radix and height: down = [degree/2, ..., degree/2, degree],
// up = [1, degree/2, ..., degree/2], matching the standard k-ary fat-tree
// construction (host uplinks are singular; the topmost layer has no
// uplinks of its own).
func NewFromDegree(height, degree int) (*Topology, error) {
	if height < 1 {
		return nil, errors.New("fattree: height must be >= 1")
	}
	if degree < 2 || degree%2 != 0 {
		return nil, errors.Errorf("fattree: degree=%d must be even and >= 2", degree)
	}
	down := make([]int, height)
	up := make([]int, height)
	for i := 0; i < height; i++ {
		up[i] = degree / 2
		down[i] = degree / 2
	}
	up[0] = 1
	down[height-1] = degree
	return New(down, up)
}

// radixesForLayer returns the per-position radix used by a node at the
// given layer: up[i] for i < layer, down[i] otherwise.
func (t *Topology) radixesForLayer(layer int) []int {
	radixes := make([]int, t.Height)
	for i := 0; i < t.Height; i++ {
		if i < layer {
			radixes[i] = t.Up[i]
		} else {
			radixes[i] = t.Down[i]
		}
	}
	return radixes
}

// mixedRadixEncode treats digits[0] as the least significant digit, so the
// hosts of one pod have consecutive flat indices.
func mixedRadixEncode(digits, radixes []int) int {
	value := 0
	for i := len(digits) - 1; i >= 0; i-- {
		value = value*radixes[i] + digits[i]
	}
	return value
}

func mixedRadixDecode(flat int, radixes []int) []int {
	digits := make([]int, len(radixes))
	for i := 0; i < len(radixes); i++ {
		digits[i] = flat % radixes[i]
		flat /= radixes[i]
	}
	return digits
}

func product(xs []int) int {
	p := 1
	for _, x := range xs {
		p *= x
	}
	return p
}

// layerSizeOf returns the number of nodes at the given layer: the product
// of up[i] for i < layer times the product of down[i] for i >= layer.
func (t *Topology) layerSizeOf(layer int) int {
	return product(t.radixesForLayer(layer))
}

func (t *Topology) build() {
	t.layerSize = make([]int, t.Height+1)
	t.nodeLayerPrefix = make([]int, t.Height+2)
	for l := 0; l <= t.Height; l++ {
		t.layerSize[l] = t.layerSizeOf(l)
		t.nodeLayerPrefix[l+1] = t.nodeLayerPrefix[l] + t.layerSize[l]
	}
	totalNodes := t.nodeLayerPrefix[t.Height+1]
	t.Nodes = make([]*Node, totalNodes)
	t.NodesByLayer = make([][]*Node, t.Height+1)

	for l := 0; l <= t.Height; l++ {
		radixes := t.radixesForLayer(l)
		layer := make([]*Node, t.layerSize[l])
		for flat := 0; flat < t.layerSize[l]; flat++ {
			n := &Node{
				ID:      t.nodeLayerPrefix[l] + flat,
				Layer:   l,
				Indices: mixedRadixDecode(flat, radixes),
			}
			layer[flat] = n
			t.Nodes[n.ID] = n
		}
		t.NodesByLayer[l] = layer
	}

	// Edges are enumerated child-major: every child at layer l has up[l]
	// edges, one per possible parent choice at position l.
	t.edgeLayerPrefix = make([]int, t.Height+1)
	for l := 0; l < t.Height; l++ {
		edgeCount := t.layerSize[l] * t.Up[l]
		t.edgeLayerPrefix[l+1] = t.edgeLayerPrefix[l] + edgeCount
	}
	totalEdges := t.edgeLayerPrefix[t.Height]
	t.Edges = make([]*Edge, totalEdges)
	t.EdgesByLayer = make([][]*Edge, t.Height)

	for l := 0; l < t.Height; l++ {
		up := t.Up[l]
		layerEdges := make([]*Edge, t.layerSize[l]*up)
		for flat := 0; flat < t.layerSize[l]; flat++ {
			child := t.NodesByLayer[l][flat]
			for digit := 0; digit < up; digit++ {
				parentIndices := append([]int(nil), child.Indices...)
				parentIndices[l] = digit
				parentFlat := mixedRadixEncode(parentIndices, t.radixesForLayer(l+1))
				parent := t.NodesByLayer[l+1][parentFlat]
				e := &Edge{
					ID:     t.edgeLayerPrefix[l] + flat*up + digit,
					Parent: parent,
					Child:  child,
				}
				t.Edges[e.ID] = e
				layerEdges[flat*up+digit] = e
			}
		}
		t.EdgesByLayer[l] = layerEdges
	}
}

// NodeID computes the dense ID of the node at the given layer with the
// given indices, in closed form: a layer-prefix sum plus a mixed-radix
// encoding of indices (up[i] for i < layer, down[i] otherwise).
func (t *Topology) NodeID(layer int, indices []int) int {
	return t.nodeLayerPrefix[layer] + mixedRadixEncode(indices, t.radixesForLayer(layer))
}

// EdgeID computes the dense ID of the edge between child and its parent,
// analogously from the child's flat position within its layer and the
// parent's digit at the child's layer.
func (t *Topology) EdgeID(parent, child *Node) int {
	l := child.Layer
	flat := child.ID - t.nodeLayerPrefix[l]
	return t.edgeLayerPrefix[l] + flat*t.Up[l] + parent.Indices[l]
}

// NumNodes returns the total number of nodes in the topology, the size to
// use for an AggrTree.NodeSet bitset.
func (t *Topology) NumNodes() int { return len(t.Nodes) }

// NumEdges returns the total number of edges in the topology, the size to
// use for an AggrTree.EdgeSet bitset.
func (t *Topology) NumEdges() int { return len(t.Edges) }

// Hosts returns the layer-0 nodes, in ID order.
func (t *Topology) Hosts() []*Node { return t.NodesByLayer[0] }

// GetClosestCommonAncestors returns every node that is a closest common
// ancestor of the given host leaves: the smallest layer at which all
// leaves' coordinates agree from that layer upward, and every candidate
// node at that layer sharing those upper coordinates (there are
// product(up[i], i < layer) of them, one per upward path choice below it).
func (t *Topology) GetClosestCommonAncestors(leaves []*Node) ([]*Node, error) {
	if len(leaves) == 0 {
		return nil, errors.New("fattree: GetClosestCommonAncestors requires at least one leaf")
	}
	for _, leaf := range leaves {
		if leaf.Layer != 0 {
			return nil, errors.Errorf("fattree: node %d is not a host (layer %d)", leaf.ID, leaf.Layer)
		}
	}

	// d is the highest-indexed position where any two leaves disagree,
	// scanning from H-1 down to 0; -1 if all leaves share every index.
	d := -1
	for i := t.Height - 1; i >= 0; i-- {
		agree := true
		first := leaves[0].Indices[i]
		for _, leaf := range leaves[1:] {
			if leaf.Indices[i] != first {
				agree = false
				break
			}
		}
		if !agree {
			d = i
			break
		}
	}
	ancestorLayer := d + 1

	if ancestorLayer == 0 {
		return []*Node{leaves[0]}, nil
	}

	upper := append([]int(nil), leaves[0].Indices...)
	freeRadixes := t.Up[:ancestorLayer]
	count := product(freeRadixes)
	ancestors := make([]*Node, count)
	for flat := 0; flat < count; flat++ {
		lower := mixedRadixDecode(flat, freeRadixes)
		indices := append([]int(nil), upper...)
		copy(indices[:ancestorLayer], lower)
		ancestors[flat] = t.NodesByLayer[ancestorLayer][mixedRadixEncode(indices, t.radixesForLayer(ancestorLayer))]
	}
	return ancestors, nil
}

// GetAggregationTree builds the aggregation tree spanning leaves and
// rooted at root (one of the nodes returned by GetClosestCommonAncestors
// for the same leaf set). It walks layer by layer from the leaves toward
// root; at each layer l below root.Layer, a node's parent is obtained by
// replacing its indices[l] with root.Indices[l] — the upward path fixed
// by the choice of root.
func (t *Topology) GetAggregationTree(leaves []*Node, root *Node) (*AggrTree, error) {
	if len(leaves) == 0 {
		return nil, errors.New("fattree: GetAggregationTree requires at least one leaf")
	}
	for _, leaf := range leaves {
		if leaf.Layer != 0 {
			return nil, errors.Errorf("fattree: node %d is not a host (layer %d)", leaf.ID, leaf.Layer)
		}
	}

	tree := &AggrTree{
		Root:    root,
		NodeSet: make([]bool, t.NumNodes()),
		EdgeSet: make([]bool, t.NumEdges()),
	}
	addNode := func(n *Node) {
		if !tree.NodeSet[n.ID] {
			tree.NodeSet[n.ID] = true
			tree.Nodes = append(tree.Nodes, n)
		}
	}
	addEdge := func(e *Edge) {
		if !tree.EdgeSet[e.ID] {
			tree.EdgeSet[e.ID] = true
			tree.Edges = append(tree.Edges, e)
		}
	}

	frontier := leaves
	for _, n := range frontier {
		addNode(n)
	}
	for layer := 0; layer < root.Layer; layer++ {
		seen := make(map[int]*Node)
		for _, child := range frontier {
			parentIndices := append([]int(nil), child.Indices...)
			parentIndices[layer] = root.Indices[layer]
			parentID := t.NodeID(layer+1, parentIndices)
			parent := t.Nodes[parentID]
			addNode(parent)
			addEdge(t.Edges[t.EdgeID(parent, child)])
			seen[parent.ID] = parent
		}
		next := make([]*Node, 0, len(seen))
		for _, n := range seen {
			next = append(next, n)
		}
		frontier = next
	}
	return tree, nil
}
