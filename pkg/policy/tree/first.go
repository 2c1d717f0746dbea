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

// Package tree implements per-job aggregation-tree building policies:
// First, Random, and the batch-level Smart policy.
package tree

import (
	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
)

// First tries every candidate common-ancestor root, in the order the
// topology returns them, and returns the first tree that doesn't conflict
// with existing usage.
func First(topology *fattree.Topology, resources *fatresource.Resources, hosts []*fattree.Node) (*fattree.AggrTree, bool) {
	roots, err := topology.GetClosestCommonAncestors(hosts)
	if err != nil {
		return nil, false
	}
	for _, root := range roots {
		tree, err := topology.GetAggregationTree(hosts, root)
		if err != nil {
			continue
		}
		if !resources.CheckTreeConflict(tree) {
			return tree, true
		}
	}
	return nil, false
}
