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

// Package metrics exposes a running simulation's statistics as Prometheus
// metrics, so a long-lived simulation (or a batch runner sweeping many
// scenarios) can be scraped the same way the rest of the stack is.
package metrics

import (
	"github.com/clusterforge/sharpsim/pkg/controller"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metric descriptor indices and descriptor table, following the
// same fixed-index convention used throughout this codebase's other
// collectors.
const (
	finishedJobsDesc = iota
	eventsDesc
	treeMigrationsDesc
	sharpJobsDesc
	consensusCallsDesc
	simulatedTimeDesc
	clusterUtilizationDesc
	jctScoreDesc
	sharpRatioDesc
	sharpUtilizationDesc
	consensusFrequencyDesc
	hostAllocationTimeMillisDesc
	treeBuildingTimeMillisDesc
)

var descriptors = []*prometheus.Desc{
	finishedJobsDesc: prometheus.NewDesc(
		"sharpsim_finished_jobs_total", "Number of jobs that have completed all of their steps.", nil, nil),
	eventsDesc: prometheus.NewDesc(
		"sharpsim_events_total", "Number of discrete events processed by the controller.", nil, nil),
	treeMigrationsDesc: prometheus.NewDesc(
		"sharpsim_tree_migrations_total", "Number of times a running job was assigned a new aggregation tree.", nil, nil),
	sharpJobsDesc: prometheus.NewDesc(
		"sharpsim_sharp_jobs_total", "Number of distinct jobs that used SHARP at least once.", nil, nil),
	consensusCallsDesc: prometheus.NewDesc(
		"sharpsim_consensus_calls_total", "Number of smart sharing-policy arbitration calls; zero under NonSharp/Greedy.", nil, nil),
	simulatedTimeDesc: prometheus.NewDesc(
		"sharpsim_simulated_time_seconds", "Simulation clock value at the end of the run.", nil, nil),
	clusterUtilizationDesc: prometheus.NewDesc(
		"sharpsim_cluster_utilization_ratio", "Fraction of host-time actually used by running jobs.", nil, nil),
	jctScoreDesc: prometheus.NewDesc(
		"sharpsim_jct_score_ratio", "Normalized job completion time improvement attributable to SHARP.", nil, nil),
	sharpRatioDesc: prometheus.NewDesc(
		"sharpsim_sharp_ratio", "Fraction of total job completion time spent transmitting via SHARP.", nil, nil),
	sharpUtilizationDesc: prometheus.NewDesc(
		"sharpsim_sharp_utilization_ratio", "Fraction of switch host-time spent performing in-network aggregation.", nil, nil),
	consensusFrequencyDesc: prometheus.NewDesc(
		"sharpsim_consensus_frequency", "Consensus-protocol calls normalized per simulated second of total job completion time.", nil, nil),
	hostAllocationTimeMillisDesc: prometheus.NewDesc(
		"sharpsim_host_allocation_time_milliseconds", "Cumulative wall-clock time spent by the host policy across all admission calls.", nil, nil),
	treeBuildingTimeMillisDesc: prometheus.NewDesc(
		"sharpsim_tree_building_time_milliseconds", "Cumulative wall-clock time spent by the tree policy across all admission calls.", nil, nil),
}

// Collector adapts a Controller's Result into a prometheus.Collector. It
// polls the controller's current Result on every Collect call, so it is
// safe to register against a live, still-running Controller as well as a
// finished one.
type Collector struct {
	source func() controller.Result
}

// NewCollector builds a Collector that calls source to obtain the latest
// Result whenever Prometheus scrapes it.
func NewCollector(source func() controller.Result) *Collector {
	return &Collector{source: source}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	res := c.source()

	ch <- prometheus.MustNewConstMetric(descriptors[finishedJobsDesc], prometheus.CounterValue, float64(res.FinishedJobs))
	ch <- prometheus.MustNewConstMetric(descriptors[eventsDesc], prometheus.CounterValue, float64(res.Events))
	ch <- prometheus.MustNewConstMetric(descriptors[treeMigrationsDesc], prometheus.CounterValue, float64(res.TreeMigrations))
	ch <- prometheus.MustNewConstMetric(descriptors[sharpJobsDesc], prometheus.CounterValue, float64(res.SharpJobs))
	ch <- prometheus.MustNewConstMetric(descriptors[consensusCallsDesc], prometheus.CounterValue, float64(res.ConsensusCalls))
	ch <- prometheus.MustNewConstMetric(descriptors[simulatedTimeDesc], prometheus.GaugeValue, res.SimulatedTime)
	ch <- prometheus.MustNewConstMetric(descriptors[clusterUtilizationDesc], prometheus.GaugeValue, res.ClusterUtilization)
	ch <- prometheus.MustNewConstMetric(descriptors[jctScoreDesc], prometheus.GaugeValue, res.JCTScore)
	ch <- prometheus.MustNewConstMetric(descriptors[sharpRatioDesc], prometheus.GaugeValue, res.SharpRatio)
	ch <- prometheus.MustNewConstMetric(descriptors[sharpUtilizationDesc], prometheus.GaugeValue, res.SharpUtilization)
	ch <- prometheus.MustNewConstMetric(descriptors[consensusFrequencyDesc], prometheus.GaugeValue, res.ConsensusFrequency)
	ch <- prometheus.MustNewConstMetric(descriptors[hostAllocationTimeMillisDesc], prometheus.CounterValue, res.HostAllocationTimeMillis)
	ch <- prometheus.MustNewConstMetric(descriptors[treeBuildingTimeMillisDesc], prometheus.CounterValue, res.TreeBuildingTimeMillis)
}

// NewRegistry builds a fresh Prometheus registry with a Collector wired in,
// mirroring the pedantic-registry-per-gatherer convention used elsewhere in
// this stack rather than relying on the global default registry.
func NewRegistry(source func() controller.Result) *prometheus.Registry {
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(NewCollector(source))
	return reg
}
