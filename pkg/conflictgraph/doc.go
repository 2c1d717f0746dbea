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

// Package conflictgraph models the conflict graph used by the "smart"
// tree-building policy: one node per candidate aggregation tree, weighted
// by how much that candidate is worth keeping, with an edge between any
// two candidates whose trees overlap (so at most one endpoint of any edge
// may be kept). Solving it for a maximum-weight independent set picks the
// best compatible subset of candidates.
package conflictgraph
