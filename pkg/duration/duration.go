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

// Package duration supplies the pluggable function jobs use to convert a
// transmission (op type, message size, SHARP usage, host count) into a
// wall-clock duration in seconds.
package duration

import "github.com/clusterforge/sharpsim/pkg/workload"

// Func computes the duration, in seconds, of transmitting messageSize
// bytes for a collective of the given type, across hostCount hosts,
// optionally accelerated by in-network aggregation.
type Func func(opType workload.OpType, messageSize uint64, useSharp bool, hostCount int) float64

// Calculator is a reference Func: a fixed per-transmission latency plus
// size/bandwidth, with SHARP boosting effective bandwidth for AllReduce by
// AccelerationRatio. A single host never actually transmits over the
// network, so its duration is latency alone.
type Calculator struct {
	// BandwidthBytesPerSecond is the link bandwidth without acceleration.
	BandwidthBytesPerSecond float64
	// AccelerationRatio is the SHARP speedup applied to AllReduce traffic;
	// must be >= 1.
	AccelerationRatio float64
	// LatencySeconds is the fixed per-transmission overhead.
	LatencySeconds float64
}

// Calc implements Func.
func (c Calculator) Calc(opType workload.OpType, messageSize uint64, useSharp bool, hostCount int) float64 {
	if hostCount <= 1 {
		return c.LatencySeconds
	}
	bandwidth := c.BandwidthBytesPerSecond
	if useSharp && opType == workload.AllReduce {
		bandwidth *= c.AccelerationRatio
	}
	return c.LatencySeconds + float64(messageSize)/bandwidth
}
