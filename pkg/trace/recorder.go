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

package trace

import "sync"

// EventKind names the kind of transition an Event records.
type EventKind string

const (
	EventBeginJob          EventKind = "begin_job"
	EventEndJob            EventKind = "end_job"
	EventBeginStep         EventKind = "begin_step"
	EventEndStep           EventKind = "end_step"
	EventBeginGroup        EventKind = "begin_group"
	EventEndGroup          EventKind = "end_group"
	EventBeginCommOp       EventKind = "begin_comm_op"
	EventEndCommOp         EventKind = "end_comm_op"
	EventBeginTransmission EventKind = "begin_transmission"
	EventEndTransmission   EventKind = "end_transmission"
	EventBeginWaiting      EventKind = "begin_waiting"
	EventEndWaiting        EventKind = "end_waiting"
)

// Event is a single recorded transition.
type Event struct {
	Kind  EventKind
	Time  float64
	JobID int
	Step  int
	Group int
	Op    int
}

// Recorder is a Tracer that appends every event it receives, in call
// order, for later inspection by tests or offline analysis.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Events returns a copy of the events recorded so far, in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) BeginJob(now float64, jobID int) {
	r.record(Event{Kind: EventBeginJob, Time: now, JobID: jobID})
}
func (r *Recorder) EndJob(now float64, jobID int) {
	r.record(Event{Kind: EventEndJob, Time: now, JobID: jobID})
}
func (r *Recorder) BeginStep(now float64, jobID, step int) {
	r.record(Event{Kind: EventBeginStep, Time: now, JobID: jobID, Step: step})
}
func (r *Recorder) EndStep(now float64, jobID, step int) {
	r.record(Event{Kind: EventEndStep, Time: now, JobID: jobID, Step: step})
}
func (r *Recorder) BeginGroup(now float64, jobID, step, group int) {
	r.record(Event{Kind: EventBeginGroup, Time: now, JobID: jobID, Step: step, Group: group})
}
func (r *Recorder) EndGroup(now float64, jobID, step, group int) {
	r.record(Event{Kind: EventEndGroup, Time: now, JobID: jobID, Step: step, Group: group})
}
func (r *Recorder) BeginCommOp(now float64, jobID, step, group, op int) {
	r.record(Event{Kind: EventBeginCommOp, Time: now, JobID: jobID, Step: step, Group: group, Op: op})
}
func (r *Recorder) EndCommOp(now float64, jobID, step, group, op int) {
	r.record(Event{Kind: EventEndCommOp, Time: now, JobID: jobID, Step: step, Group: group, Op: op})
}
func (r *Recorder) BeginTransmission(now float64, jobID, step, group, op int) {
	r.record(Event{Kind: EventBeginTransmission, Time: now, JobID: jobID, Step: step, Group: group, Op: op})
}
func (r *Recorder) EndTransmission(now float64, jobID, step, group, op int) {
	r.record(Event{Kind: EventEndTransmission, Time: now, JobID: jobID, Step: step, Group: group, Op: op})
}
func (r *Recorder) BeginWaiting(now float64, jobID int) {
	r.record(Event{Kind: EventBeginWaiting, Time: now, JobID: jobID})
}
func (r *Recorder) EndWaiting(now float64, jobID int) {
	r.record(Event{Kind: EventEndWaiting, Time: now, JobID: jobID})
}
