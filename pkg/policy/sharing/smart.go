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

// SmartPolicy chunks SHARP transmissions so a group's jobs take turns
// using its shared aggregation hardware instead of one job monopolizing
// it for an entire op, and queues jobs that would otherwise collide with
// a group-mate's in-flight SHARP transmission behind a short retry wait
// rather than falling back to non-SHARP immediately. Every arbitration,
// successful or not, counts toward ConsensusCount.
type SmartPolicy struct {
	Resources *fatresource.Resources

	// ChunkSize caps a single SHARP transmission's message size; larger
	// ops are split across multiple arbitrations so other group members
	// get a turn sooner.
	ChunkSize uint64
	// RetryWait is how long a job waits before re-arbitrating when it is
	// blocked by a group-mate's live SHARP transmission.
	RetryWait float64

	ConsensusCount int
}

// Arbitrate implements sharinggroup.SharingPolicyFunc.
func (p *SmartPolicy) Arbitrate(sg *sharinggroup.SharingGroup, j *job.Job, now float64) job.ScheduleResult {
	p.ConsensusCount++

	remaining := j.RemainingMessageSize()
	tree := j.AggrTree()
	if tree == nil {
		return job.Transmit(false, remaining)
	}
	if anyMateUsingSharp(sg, j) {
		wait := p.RetryWait
		if wait <= 0 {
			wait = 1
		}
		return job.Wait(wait)
	}
	if p.Resources.CheckTreeConflict(tree) {
		return job.Transmit(false, remaining)
	}

	size := remaining
	if p.ChunkSize > 0 && size > p.ChunkSize {
		size = p.ChunkSize
	}
	return job.Transmit(true, size)
}

// ConsensusCalls implements policy.ConsensusCounter.
func (p *SmartPolicy) ConsensusCalls() int { return p.ConsensusCount }
