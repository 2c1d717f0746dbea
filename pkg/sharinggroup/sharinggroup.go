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

// Package sharinggroup owns a set of jobs that may contend for the same
// SHARP-capable hardware, and arbitrates between them before every
// transmission via a pluggable sharing policy.
package sharinggroup

import (
	"github.com/clusterforge/sharpsim/pkg/job"
	"github.com/clusterforge/sharpsim/pkg/log"
)

var logger = log.Get("sharinggroup")

// SharingPolicyFunc decides, for the given job at the given time, whether
// it may transmit now (and whether it may use SHARP) or must wait.
type SharingPolicyFunc func(sg *SharingGroup, j *job.Job, now float64) job.ScheduleResult

// BeforeTransmissionFunc is notified just before a job in the group
// starts a transmission that the sharing policy has authorized.
type BeforeTransmissionFunc func(j *job.Job, now float64, useSharp bool)

// AfterTransmissionFunc is notified once a job in the group finishes a
// transmission, and whether it used SHARP.
type AfterTransmissionFunc func(j *job.Job, now float64, useSharp bool)

// SharingGroup is a fixed set of jobs, all arbitrated by the same
// SharingPolicyFunc, that must not concurrently use SHARP against each
// other's wishes.
type SharingGroup struct {
	Jobs []*job.Job

	sharingPolicy      SharingPolicyFunc
	beforeTransmission BeforeTransmissionFunc
	afterTransmission  AfterTransmissionFunc
}

// New builds a SharingGroup over jobs, installing the before/after
// transmission hooks that route every job's transmission decision through
// sharingPolicy.
func New(jobs []*job.Job, sharingPolicy SharingPolicyFunc) *SharingGroup {
	sg := &SharingGroup{
		Jobs:               jobs,
		sharingPolicy:      sharingPolicy,
		beforeTransmission: func(*job.Job, float64, bool) {},
		afterTransmission:  func(*job.Job, float64, bool) {},
	}
	for _, j := range jobs {
		j := j
		j.SetBeforeTransmissionCallback(func(jj *job.Job, now float64) job.ScheduleResult {
			res := sg.sharingPolicy(sg, jj, now)
			if !res.InsertWaitingTime {
				sg.beforeTransmission(jj, now, res.UseSharp)
			}
			return res
		})
		j.SetAfterTransmissionCallback(func(jj *job.Job, now float64, useSharp bool) {
			sg.afterTransmission(jj, now, useSharp)
		})
	}
	return sg
}

// SetBeforeTransmissionCallback installs the group-wide before-
// transmission hook (typically the controller's resource-allocation
// bookkeeping).
func (sg *SharingGroup) SetBeforeTransmissionCallback(cb BeforeTransmissionFunc) {
	sg.beforeTransmission = cb
}

// SetAfterTransmissionCallback installs the group-wide after-transmission
// hook.
func (sg *SharingGroup) SetAfterTransmissionCallback(cb AfterTransmissionFunc) {
	sg.afterTransmission = cb
}

// GetNextEvent returns the time of, and the job responsible for, this
// group's next event — the earliest NextEventTime among its jobs.
func (sg *SharingGroup) GetNextEvent(now float64) (float64, *job.Job) {
	var nearestTime float64
	var nearestJob *job.Job
	for _, j := range sg.Jobs {
		t := j.NextEventTime(now)
		if nearestJob == nil || t < nearestTime {
			nearestTime, nearestJob = t, j
		}
	}
	if nearestJob == nil {
		logger.Error("GetNextEvent called on an empty sharing group")
		panic("sharinggroup: GetNextEvent called on an empty sharing group")
	}
	return nearestTime, nearestJob
}

// RunNextEvent advances j past its next event. It returns whether j has
// finished.
func (sg *SharingGroup) RunNextEvent(now float64, j *job.Job) bool {
	return j.RunNextEvent(now)
}
