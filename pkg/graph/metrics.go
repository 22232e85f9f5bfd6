// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsGraph holds Prometheus metrics for graph building.
type metricsGraph struct {
	once sync.Once

	filesApplied *prometheus.CounterVec // by phase
	filesFailed  *prometheus.CounterVec // by phase
	mutations    prometheus.Counter
	chunks       prometheus.Counter

	fileWriteDuration prometheus.Histogram
	buildDuration     prometheus.Histogram
}

var graphMetrics metricsGraph

func (m *metricsGraph) init() {
	m.once.Do(func() {
		m.filesApplied = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "docgraph_graph_files_applied_total", Help: "File batches committed"}, []string{"phase"})
		m.filesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "docgraph_graph_files_failed_total", Help: "File batches rolled back"}, []string{"phase"})
		m.mutations = prometheus.NewCounter(prometheus.CounterOpts{Name: "docgraph_graph_mutations_total", Help: "Mutations committed"})
		m.chunks = prometheus.NewCounter(prometheus.CounterOpts{Name: "docgraph_graph_chunks_total", Help: "Chunk nodes created"})

		m.fileWriteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "docgraph_graph_file_write_seconds", Help: "Per-file transaction duration", Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}})
		m.buildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "docgraph_graph_build_seconds", Help: "Graph build duration", Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600}})

		prometheus.MustRegister(
			m.filesApplied, m.filesFailed, m.mutations, m.chunks,
			m.fileWriteDuration, m.buildDuration,
		)
	})
}

func recordFileWrite(phase string, mutations int, d time.Duration, err error) {
	graphMetrics.init()
	graphMetrics.fileWriteDuration.Observe(d.Seconds())
	if err != nil {
		graphMetrics.filesFailed.WithLabelValues(phase).Inc()
		return
	}
	graphMetrics.filesApplied.WithLabelValues(phase).Inc()
	graphMetrics.mutations.Add(float64(mutations))
}

func recordChunks(n int) { graphMetrics.init(); graphMetrics.chunks.Add(float64(n)) }

func recordBuildDuration(d time.Duration) {
	graphMetrics.init()
	graphMetrics.buildDuration.Observe(d.Seconds())
}
