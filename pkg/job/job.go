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

// Package job drives a single training job's (step, group, op,
// transmission) state machine: NextEventTime reports when the job next
// needs attention, RunNextEvent advances it past that point.
package job

import (
	"fmt"
	"math"

	"github.com/clusterforge/sharpsim/pkg/fattree"
	"github.com/clusterforge/sharpsim/pkg/log"
	"github.com/clusterforge/sharpsim/pkg/trace"
	"github.com/clusterforge/sharpsim/pkg/workload"
)

var logger = log.Get("job")

// InvariantError marks a violated state-machine invariant: a programming
// error (calling RunNextEvent on a finished job, a before-transmission
// callback returning an over-budget message size), not an expected
// runtime condition.
type InvariantError struct{ msg string }

func (e *InvariantError) Error() string { return e.msg }

func invariant(format string, args ...interface{}) {
	panic(&InvariantError{msg: fmt.Sprintf(format, args...)})
}

// ScheduleResult is what a BeforeTransmissionFunc returns: either a
// request to wait WaitingTime seconds before being asked again, or a
// concrete transmission to run (MessageSize bytes, over SHARP or not).
type ScheduleResult struct {
	InsertWaitingTime bool
	WaitingTime       float64
	UseSharp          bool
	MessageSize       uint64
}

// Wait returns a ScheduleResult asking to be re-invoked after
// waitingTime seconds.
func Wait(waitingTime float64) ScheduleResult {
	return ScheduleResult{InsertWaitingTime: true, WaitingTime: waitingTime}
}

// Transmit returns a ScheduleResult authorizing a transmission of
// messageSize bytes, over SHARP or not.
func Transmit(useSharp bool, messageSize uint64) ScheduleResult {
	return ScheduleResult{UseSharp: useSharp, MessageSize: messageSize}
}

// BeforeTransmissionFunc arbitrates whether j may start (or continue) its
// current CommOp's transmission right now; it is the sharing group's hook
// into SHARP arbitration and chunk sizing.
type BeforeTransmissionFunc func(j *Job, now float64) ScheduleResult

// AfterTransmissionFunc is notified once a transmission completes, and
// whether it used SHARP.
type AfterTransmissionFunc func(j *Job, now float64, useSharp bool)

// Job is one training job's communication-pattern state machine.
type Job struct {
	ID           int
	Workload     workload.Workload
	CalcDuration func(opType workload.OpType, messageSize uint64, useSharp bool, hostCount int) float64

	tracer             trace.Tracer
	beforeTransmission BeforeTransmissionFunc
	afterTransmission  AfterTransmissionFunc

	currentStepIdx                  int
	currentGroupIdx                 int
	currentOpIdx                    int
	currentOpTransmittedMessageSize uint64
	isRunning                       bool
	waitingUntilTime                float64
	transmittingMessageSize         uint64
	currentTransmissionDuration     float64
	currentGroupStartTime           float64
	currentTransmissionStartTime    float64
	isUsingSharp                    bool

	isStarted             bool
	isFinished            bool
	jobStartTime          float64
	jobFinishTime         float64
	jobDurationWithSharp  float64
	jobDurationWithoutSharp float64

	currentAggrTree *fattree.AggrTree
	migrations      int

	hosts []*fattree.Node
}

// New returns an unstarted Job. Call SetBeforeTransmissionCallback before
// the first RunNextEvent; everything else defaults to a no-op.
func New(id int, wl workload.Workload, calcDuration func(workload.OpType, uint64, bool, int) float64) *Job {
	return &Job{
		ID:           id,
		Workload:     wl,
		CalcDuration: calcDuration,
		tracer:       trace.NoOp,
	}
}

// SetHosts records the hosts this job was allocated at admission time. Tree
// building policies read this back to find candidate aggregation roots.
func (j *Job) SetHosts(hosts []*fattree.Node) { j.hosts = hosts }

// Hosts returns the hosts this job was allocated.
func (j *Job) Hosts() []*fattree.Node { return j.hosts }

// HostCount returns the number of hosts this job runs on.
func (j *Job) HostCount() int { return j.Workload.HostCount }

// SetTracer installs the Tracer used for this job's transitions.
func (j *Job) SetTracer(t trace.Tracer) {
	if t == nil {
		t = trace.NoOp
	}
	j.tracer = t
}

// SetBeforeTransmissionCallback installs the arbitration hook called
// before (and to continue) every transmission.
func (j *Job) SetBeforeTransmissionCallback(cb BeforeTransmissionFunc) {
	j.beforeTransmission = cb
}

// SetAfterTransmissionCallback installs the hook called after every
// completed transmission.
func (j *Job) SetAfterTransmissionCallback(cb AfterTransmissionFunc) {
	j.afterTransmission = cb
}

// SetNextAggrTree assigns the aggregation tree this job should use for
// its current (or next) SHARP transmission. Replacing an assigned tree with
// one rooted elsewhere, or with nil, counts as a migration; assigning a
// tree while none is assigned does not.
func (j *Job) SetNextAggrTree(tree *fattree.AggrTree) {
	if j.currentAggrTree != nil && !sameTree(j.currentAggrTree, tree) {
		j.migrations++
	}
	j.currentAggrTree = tree
}

func sameTree(a, b *fattree.AggrTree) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Root == b.Root
}

// AggrTree returns the job's currently assigned aggregation tree, or nil
// if it isn't using SHARP.
func (j *Job) AggrTree() *fattree.AggrTree { return j.currentAggrTree }

// IsUsingSharp reports whether the job's in-flight transmission (if any)
// is using SHARP.
func (j *Job) IsUsingSharp() bool { return j.isRunning && j.isUsingSharp }

// LastTransmissionDuration returns the duration of the most recently
// started (or just-finished) transmission. It is meaningful from within
// the after-transmission hook, before the next transmission overwrites it.
func (j *Job) LastTransmissionDuration() float64 { return j.currentTransmissionDuration }

// Migrations returns how many times SetNextAggrTree replaced the job's
// assigned tree with one of a different root, or with nil.
func (j *Job) Migrations() int { return j.migrations }

func (j *Job) CurrentStepIdx() int   { return j.currentStepIdx }
func (j *Job) CurrentGroupIdx() int  { return j.currentGroupIdx }
func (j *Job) CurrentOpIdx() int     { return j.currentOpIdx }
func (j *Job) IsStarted() bool       { return j.isStarted }
func (j *Job) IsFinished() bool      { return j.isFinished }
func (j *Job) IsRunning() bool       { return j.isRunning }
func (j *Job) JobStartTime() float64 { return j.jobStartTime }
func (j *Job) JobFinishTime() float64 { return j.jobFinishTime }

// CurrentGroupStartTime returns the simulated time at which the job's
// current CommOpGroup began. A still-running job's partial JCT credit is
// measured up to this point, not up to now, so in-flight progress within
// the current group isn't counted twice across a run that gets cut short.
func (j *Job) CurrentGroupStartTime() float64 { return j.currentGroupStartTime }
func (j *Job) JobDurationWithSharp() float64    { return j.jobDurationWithSharp }
func (j *Job) JobDurationWithoutSharp() float64 { return j.jobDurationWithoutSharp }

// CurrentCommOp returns the op at the job's current position.
func (j *Job) CurrentCommOp() workload.CommOp {
	return j.Workload.CommOpGroups[j.currentGroupIdx].CommOps[j.currentOpIdx]
}

// RemainingMessageSize returns how many bytes of the current op have yet
// to be transmitted, across however many chunked transmissions it took.
func (j *Job) RemainingMessageSize() uint64 {
	return j.CurrentCommOp().MessageSize - j.currentOpTransmittedMessageSize
}

// NextEventTime reports the simulation time at which this job next
// requires a RunNextEvent call; it never advances state.
func (j *Job) NextEventTime(now float64) float64 {
	if !j.isStarted {
		return now
	}
	if j.isFinished {
		invariant("job %d: NextEventTime called on a finished job", j.ID)
	}
	group := j.Workload.CommOpGroups[j.currentGroupIdx]
	if j.currentOpIdx >= len(group.CommOps) {
		if j.isRunning {
			invariant("job %d: running with no current op", j.ID)
		}
		return math.Max(now, j.currentGroupStartTime+group.SyncTime)
	}
	op := group.CommOps[j.currentOpIdx]
	if j.isRunning {
		return j.currentTransmissionStartTime + j.currentTransmissionDuration
	}
	return math.Max(now, math.Max(j.waitingUntilTime, j.currentGroupStartTime+op.StartTimeInGroup))
}

// RunNextEvent advances the job past its next event, calling into the
// tracer and the before/after-transmission callbacks as it goes. It
// returns true once the job has completed its final step.
func (j *Job) RunNextEvent(now float64) bool {
	if !j.isStarted {
		j.tracer.BeginJob(now, j.ID)
		j.tracer.BeginStep(now, j.ID, j.currentStepIdx)
		j.tracer.BeginGroup(now, j.ID, j.currentStepIdx, j.currentGroupIdx)
		j.isStarted = true
		j.jobStartTime = now
		j.currentGroupStartTime = now
		logger.Debug("job %d: started at t=%.6f", j.ID, now)
		return false
	}
	if j.isFinished {
		invariant("job %d: RunNextEvent called on a finished job", j.ID)
	}

	group := j.Workload.CommOpGroups[j.currentGroupIdx]
	if j.currentOpIdx >= len(group.CommOps) {
		if j.isRunning {
			invariant("job %d: running with no current op", j.ID)
		}
		j.tracer.EndGroup(now, j.ID, j.currentStepIdx, j.currentGroupIdx)
		j.currentOpIdx = 0
		j.currentGroupIdx++
		if j.currentGroupIdx >= len(j.Workload.CommOpGroups) {
			j.tracer.EndStep(now, j.ID, j.currentStepIdx)
			j.currentGroupIdx = 0
			j.currentStepIdx++
			if j.Workload.StepCount != workload.OpenEndedStepCount && j.currentStepIdx >= j.Workload.StepCount {
				j.tracer.EndJob(now, j.ID)
				j.isFinished = true
				j.jobFinishTime = now
				logger.Debug("job %d: finished at t=%.6f", j.ID, now)
				return true
			}
			j.tracer.BeginStep(now, j.ID, j.currentStepIdx)
		}
		j.tracer.BeginGroup(now, j.ID, j.currentStepIdx, j.currentGroupIdx)
		j.currentGroupStartTime = now
		return false
	}

	op := group.CommOps[j.currentOpIdx]
	if j.isRunning {
		j.tracer.EndTransmission(now, j.ID, j.currentStepIdx, j.currentGroupIdx, j.currentOpIdx)
		j.isRunning = false
		j.currentOpTransmittedMessageSize += j.transmittingMessageSize
		if j.currentOpTransmittedMessageSize > op.MessageSize {
			invariant("job %d: transmitted %d bytes, more than op size %d", j.ID, j.currentOpTransmittedMessageSize, op.MessageSize)
		}
		if j.currentOpTransmittedMessageSize == op.MessageSize {
			j.tracer.EndCommOp(now, j.ID, j.currentStepIdx, j.currentGroupIdx, j.currentOpIdx)
			j.currentOpTransmittedMessageSize = 0
			j.currentOpIdx++
		}
		if j.isUsingSharp {
			j.jobDurationWithSharp += j.currentTransmissionDuration
		} else {
			j.jobDurationWithoutSharp += j.currentTransmissionDuration
		}
		if j.afterTransmission != nil {
			j.afterTransmission(j, now, j.isUsingSharp)
		}
		return false
	}

	resumingFromWait := j.waitingUntilTime != 0
	if j.currentOpTransmittedMessageSize == 0 && !resumingFromWait {
		j.tracer.BeginCommOp(now, j.ID, j.currentStepIdx, j.currentGroupIdx, j.currentOpIdx)
	}
	if j.beforeTransmission == nil {
		invariant("job %d: no before-transmission callback installed", j.ID)
	}
	result := j.beforeTransmission(j, now)
	if result.InsertWaitingTime {
		j.tracer.BeginWaiting(now, j.ID)
		j.waitingUntilTime = now + result.WaitingTime
		return false
	}
	if resumingFromWait {
		j.tracer.EndWaiting(now, j.ID)
		j.waitingUntilTime = 0
	}
	j.isRunning = true
	j.isUsingSharp = result.UseSharp
	j.transmittingMessageSize = result.MessageSize
	if j.currentOpTransmittedMessageSize+j.transmittingMessageSize > op.MessageSize {
		invariant("job %d: scheduled transmission of %d bytes exceeds remaining op size", j.ID, j.transmittingMessageSize)
	}
	j.currentTransmissionDuration = j.CalcDuration(op.OpType, j.transmittingMessageSize, j.isUsingSharp, j.Workload.HostCount)
	j.currentTransmissionStartTime = now
	j.tracer.BeginTransmission(now, j.ID, j.currentStepIdx, j.currentGroupIdx, j.currentOpIdx)
	return false
}
