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

// Package fattree builds and queries a fixed-height fat-tree topology: a
// dense, O(1)-addressable set of nodes and edges, closest-common-ancestor
// search, and aggregation-tree extraction for a set of host leaves.
//
// The topology is immutable once constructed; it is the unique producer of
// Node, Edge and AggrTree values, which downstream packages treat as
// read-only.
package fattree
