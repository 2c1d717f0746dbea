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

package metrics

import (
	"strings"
	"testing"

	"github.com/clusterforge/sharpsim/pkg/controller"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorReportsLatestResult(t *testing.T) {
	res := controller.Result{
		Stats: controller.Stats{
			FinishedJobs:   3,
			Events:         10,
			TreeMigrations: 1,
			SharpJobs:      2,
			ConsensusCalls: 7,
			SimulatedTime:  42.5,
		},
		ClusterUtilization: 0.75,
		JCTScore:           0.5,
		SharpRatio:         0.6,
		SharpUtilization:   0.2,
		ConsensusFrequency: 0.16,
	}
	c := NewCollector(func() controller.Result { return res })

	require.Equal(t, 13, testutil.CollectAndCount(c))
}

func TestCollectorPicksUpChangesBetweenScrapes(t *testing.T) {
	finished := 0
	c := NewCollector(func() controller.Result {
		return controller.Result{Stats: controller.Stats{FinishedJobs: finished}}
	})

	require.NoError(t, testutil.GatherAndCompare(gatherer(c), strings.NewReader(`
# HELP sharpsim_finished_jobs_total Number of jobs that have completed all of their steps.
# TYPE sharpsim_finished_jobs_total counter
sharpsim_finished_jobs_total 0
`), "sharpsim_finished_jobs_total"))

	finished = 5
	require.NoError(t, testutil.GatherAndCompare(gatherer(c), strings.NewReader(`
# HELP sharpsim_finished_jobs_total Number of jobs that have completed all of their steps.
# TYPE sharpsim_finished_jobs_total counter
sharpsim_finished_jobs_total 5
`), "sharpsim_finished_jobs_total"))
}

func gatherer(c *Collector) prometheus.Gatherer {
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)
	return reg
}
