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

// Package host implements host-allocation policies: First, Random, and
// Smart.
package host

import (
	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
)

// First picks the first nHosts unused hosts, in ID order.
func First(resources *fatresource.Resources, nHosts int) ([]*fattree.Node, bool) {
	chosen := make([]*fattree.Node, 0, nHosts)
	for _, h := range resources.Topology.Hosts() {
		if resources.NodeUsage(h.ID) != 0 {
			continue
		}
		chosen = append(chosen, h)
		if len(chosen) == nHosts {
			return chosen, true
		}
	}
	return nil, false
}
