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

// Package policy declares the pluggable callback contracts the controller
// composes at admission time: choosing hosts for a new job, attempting to
// build it a conflict-free aggregation tree, and arbitrating transmissions
// within a sharing group. Concrete strategies live in the host, tree, and
// sharing subpackages.
package policy

import (
	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/fattree"
	"github.com/clusterforge/sharpsim/pkg/sharinggroup"
)

// HostFunc selects nHosts currently-unused hosts from resources. It
// reports false if no such selection exists.
type HostFunc func(resources *fatresource.Resources, nHosts int) ([]*fattree.Node, bool)

// TreeFunc attempts to build a conflict-free aggregation tree spanning
// hosts. It reports false if every candidate root's tree conflicts with
// existing usage, in which case the job falls back to non-SHARP.
type TreeFunc func(topology *fattree.Topology, resources *fatresource.Resources, hosts []*fattree.Node) (*fattree.AggrTree, bool)

// SharingFunc arbitrates a job's transmission request within its sharing
// group.
type SharingFunc = sharinggroup.SharingPolicyFunc

// ConsensusCounter is implemented by sharing policies that run an
// explicit consensus protocol on every arbitration and want its call
// frequency reported in Result. Only the smart sharing policy runs one;
// NonSharp and Greedy never do, so a controller with no ConsensusCounter
// wired reports zero consensus calls for them.
type ConsensusCounter interface {
	ConsensusCalls() int
}

// Result classifies the outcome of AllocateHostsAndTree.
type Result int

const (
	// Fail means no set of hosts could be allocated at all.
	Fail Result = iota
	// Sharp means hosts and a conflict-free aggregation tree were both
	// allocated.
	Sharp
	// NonSharp means hosts were allocated but no tree was: the job runs
	// without in-network aggregation.
	NonSharp
)

// AllocateHostsAndTree composes a HostFunc and a TreeFunc the way the
// controller does at job admission: pick hosts, then try to root a tree
// over them, falling back to a host-only (non-SHARP) placement.
func AllocateHostsAndTree(topology *fattree.Topology, resources *fatresource.Resources, hostFn HostFunc, treeFn TreeFunc, nHosts int) (Result, []*fattree.Node, *fattree.AggrTree) {
	hosts, ok := hostFn(resources, nHosts)
	if !ok {
		return Fail, nil, nil
	}
	tree, ok := treeFn(topology, resources, hosts)
	if ok {
		return Sharp, hosts, tree
	}
	return NonSharp, hosts, nil
}
