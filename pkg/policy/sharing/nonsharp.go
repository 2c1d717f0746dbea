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

// Package sharing implements the within-group transmission-arbitration
// policies: NonSharp, Greedy, and Smart.
package sharing

import (
	"github.com/clusterforge/sharpsim/pkg/job"
	"github.com/clusterforge/sharpsim/pkg/sharinggroup"
)

// NonSharp always transmits the full remaining op size without SHARP.
func NonSharp(_ *sharinggroup.SharingGroup, j *job.Job, _ float64) job.ScheduleResult {
	return job.Transmit(false, j.RemainingMessageSize())
}
