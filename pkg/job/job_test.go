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

package job

import (
	"testing"

	"github.com/clusterforge/sharpsim/pkg/trace"
	"github.com/clusterforge/sharpsim/pkg/workload"
	"github.com/stretchr/testify/require"
)

func simpleWorkload() workload.Workload {
	return workload.Workload{
		HostCount: 4,
		StepCount: 2,
		CommOpGroups: []workload.CommOpGroup{
			{
				SyncTime: 1,
				CommOps: []workload.CommOp{
					{StartTimeInGroup: 0, MessageSize: 100, OpType: workload.AllReduce},
				},
			},
		},
	}
}

func constantDuration(_ workload.OpType, _ uint64, _ bool, _ int) float64 { return 2 }

func TestJobRunsToCompletion(t *testing.T) {
	j := New(1, simpleWorkload(), constantDuration)
	recorder := trace.NewRecorder()
	j.SetTracer(recorder)
	j.SetBeforeTransmissionCallback(func(j *Job, now float64) ScheduleResult {
		return Transmit(false, j.CurrentCommOp().MessageSize)
	})

	now := 0.0
	for i := 0; i < 100 && !j.IsFinished(); i++ {
		now = j.NextEventTime(now)
		j.RunNextEvent(now)
	}
	require.True(t, j.IsFinished())
	require.Equal(t, 0.0, j.JobStartTime())
	require.Greater(t, j.JobFinishTime(), 0.0)
	require.Equal(t, 2.0*2, j.JobDurationWithoutSharp())

	events := recorder.Events()
	require.Equal(t, trace.EventBeginJob, events[0].Kind)
	require.Equal(t, trace.EventEndJob, events[len(events)-1].Kind)
}

func TestNextEventTimeBeforeStartIsNow(t *testing.T) {
	j := New(1, simpleWorkload(), constantDuration)
	require.Equal(t, 5.0, j.NextEventTime(5.0))
}

func TestRunNextEventPanicsWithoutCallback(t *testing.T) {
	j := New(1, simpleWorkload(), constantDuration)
	j.RunNextEvent(0) // begin job
	require.Panics(t, func() { j.RunNextEvent(0) })
}

func TestSetNextAggrTreeWithNoTreeAssignedIsNotAMigration(t *testing.T) {
	j := New(1, simpleWorkload(), constantDuration)
	require.Equal(t, 0, j.Migrations())
	j.SetNextAggrTree(nil)
	require.Equal(t, 0, j.Migrations())
}

func TestWaitingInsertsWaitAndResumes(t *testing.T) {
	j := New(1, simpleWorkload(), constantDuration)
	waited := false
	j.SetBeforeTransmissionCallback(func(j *Job, now float64) ScheduleResult {
		if !waited {
			waited = true
			return Wait(3)
		}
		return Transmit(false, j.CurrentCommOp().MessageSize)
	})

	now := 0.0
	now = j.NextEventTime(now)
	j.RunNextEvent(now) // begin job
	now = j.NextEventTime(now)
	j.RunNextEvent(now) // triggers Wait(3)
	require.True(t, waited)
	next := j.NextEventTime(now)
	require.Equal(t, now+3, next)
}
