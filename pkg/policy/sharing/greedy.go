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

package sharing

import (
	"github.com/clusterforge/sharpsim/pkg/fatresource"
	"github.com/clusterforge/sharpsim/pkg/job"
	"github.com/clusterforge/sharpsim/pkg/sharinggroup"
)

// GreedyPolicy authorizes SHARP for a job's current transmission whenever
// it has a tree assigned, no group-mate is already using SHARP, and its
// tree doesn't conflict against whatever is currently live on the
// cluster. It always transmits the full remaining op size.
type GreedyPolicy struct {
	Resources *fatresource.Resources
}

// Arbitrate implements sharinggroup.SharingPolicyFunc.
func (p *GreedyPolicy) Arbitrate(sg *sharinggroup.SharingGroup, j *job.Job, now float64) job.ScheduleResult {
	tree := j.AggrTree()
	useSharp := tree != nil && !p.Resources.CheckTreeConflict(tree) && !anyMateUsingSharp(sg, j)
	return job.Transmit(useSharp, j.RemainingMessageSize())
}

func anyMateUsingSharp(sg *sharinggroup.SharingGroup, self *job.Job) bool {
	for _, mate := range sg.Jobs {
		if mate != self && mate.IsUsingSharp() {
			return true
		}
	}
	return false
}
