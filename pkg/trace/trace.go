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

// Package trace records the timeline of state transitions a job passes
// through, for introspection and tests. It is a standalone collaborator a
// job calls into at each transition; it does not drive the simulation.
package trace

// Tracer receives one call per job state transition. now is simulation
// time in seconds; step/group/op are the indices active at the time of
// the call.
type Tracer interface {
	BeginJob(now float64, jobID int)
	EndJob(now float64, jobID int)
	BeginStep(now float64, jobID, step int)
	EndStep(now float64, jobID, step int)
	BeginGroup(now float64, jobID, step, group int)
	EndGroup(now float64, jobID, step, group int)
	BeginCommOp(now float64, jobID, step, group, op int)
	EndCommOp(now float64, jobID, step, group, op int)
	BeginTransmission(now float64, jobID, step, group, op int)
	EndTransmission(now float64, jobID, step, group, op int)
	BeginWaiting(now float64, jobID int)
	EndWaiting(now float64, jobID int)
}

type noop struct{}

func (noop) BeginJob(float64, int)                     {}
func (noop) EndJob(float64, int)                       {}
func (noop) BeginStep(float64, int, int)                {}
func (noop) EndStep(float64, int, int)                  {}
func (noop) BeginGroup(float64, int, int, int)          {}
func (noop) EndGroup(float64, int, int, int)            {}
func (noop) BeginCommOp(float64, int, int, int, int)    {}
func (noop) EndCommOp(float64, int, int, int, int)      {}
func (noop) BeginTransmission(float64, int, int, int, int) {}
func (noop) EndTransmission(float64, int, int, int, int)   {}
func (noop) BeginWaiting(float64, int)                  {}
func (noop) EndWaiting(float64, int)                    {}

// NoOp is a Tracer that discards every event; the default for jobs that
// don't need a timeline.
var NoOp Tracer = noop{}
