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

package conflictgraph

import (
	"strconv"

	"github.com/katalvlaran/lvlath/core"
	"github.com/pkg/errors"
)

// Graph is a weighted, undirected conflict graph over integer-keyed
// candidates. It is backed by a core.Graph for storage and induced-subgraph
// projection; node weights live alongside it since core's Weight field
// belongs to edges, not vertices.
type Graph struct {
	g       *core.Graph
	weights map[int]int64
}

// New returns an empty conflict graph.
func New() *Graph {
	return &Graph{
		g:       core.NewGraph(core.WithMultiEdges()),
		weights: make(map[int]int64),
	}
}

func vid(id int) string { return strconv.Itoa(id) }

// AddNode adds a candidate with the given weight. Adding the same id twice
// updates its weight.
func (cg *Graph) AddNode(id int, weight int64) error {
	if !cg.g.HasVertex(vid(id)) {
		if err := cg.g.AddVertex(vid(id)); err != nil {
			return errors.Wrapf(err, "conflictgraph: add node %d", id)
		}
	}
	cg.weights[id] = weight
	return nil
}

// AddEdge records that id1 and id2 conflict (their candidate trees
// overlap).
func (cg *Graph) AddEdge(id1, id2 int) error {
	if cg.g.HasEdge(vid(id1), vid(id2)) {
		return nil
	}
	if _, err := cg.g.AddEdge(vid(id1), vid(id2), 0); err != nil {
		return errors.Wrapf(err, "conflictgraph: add edge %d-%d", id1, id2)
	}
	return nil
}

// HasEdge reports whether id1 and id2 conflict.
func (cg *Graph) HasEdge(id1, id2 int) bool {
	return cg.g.HasEdge(vid(id1), vid(id2))
}

// Weight returns the node weight of id.
func (cg *Graph) Weight(id int) int64 { return cg.weights[id] }

// Nodes returns every node id currently in the graph, in no particular
// order.
func (cg *Graph) Nodes() []int {
	verts := cg.g.Vertices()
	ids := make([]int, 0, len(verts))
	for _, v := range verts {
		id, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Neighbors returns the ids adjacent to id.
func (cg *Graph) Neighbors(id int) []int {
	neighborIDs, err := cg.g.NeighborIDs(vid(id))
	if err != nil {
		return nil
	}
	ids := make([]int, 0, len(neighborIDs))
	for _, v := range neighborIDs {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}
	return ids
}

// RemoveNode drops a candidate and every edge touching it.
func (cg *Graph) RemoveNode(id int) {
	_ = cg.g.RemoveVertex(vid(id))
	delete(cg.weights, id)
}

// Subgraph returns the induced subgraph over the given node ids, with
// their weights carried over.
func (cg *Graph) Subgraph(ids []int) *Graph {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[vid(id)] = true
	}
	sub := &Graph{
		g:       core.InducedSubgraph(cg.g, keep),
		weights: make(map[int]int64, len(ids)),
	}
	for _, id := range ids {
		if w, ok := cg.weights[id]; ok {
			sub.weights[id] = w
		}
	}
	return sub
}
