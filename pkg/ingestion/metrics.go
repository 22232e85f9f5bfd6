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

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the extraction subsystem.
type metricsIngestion struct {
	once sync.Once

	// Files
	filesExtracted *prometheus.CounterVec // by record type
	filesSkipped   *prometheus.CounterVec // by reason
	parseErrors    prometheus.Counter

	// Entities
	classes   prometheus.Counter
	functions prometheus.Counter
	calls     prometheus.Counter

	// Durations
	fileDuration    prometheus.Histogram
	resolveDuration prometheus.Histogram
	totalDuration   prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.filesExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "docgraph_extract_files_total", Help: "Files turned into records"}, []string{"type"})
		m.filesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "docgraph_extract_files_skipped_total", Help: "Files skipped during extraction"}, []string{"reason"})
		m.parseErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "docgraph_extract_parse_errors_total", Help: "Files dropped because they could not be parsed"})

		m.classes = prometheus.NewCounter(prometheus.CounterOpts{Name: "docgraph_extract_classes_total", Help: "Classes extracted"})
		m.functions = prometheus.NewCounter(prometheus.CounterOpts{Name: "docgraph_extract_functions_total", Help: "Free functions extracted"})
		m.calls = prometheus.NewCounter(prometheus.CounterOpts{Name: "docgraph_extract_calls_total", Help: "Call sites extracted"})

		buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.fileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "docgraph_extract_file_seconds", Help: "Per-file extraction duration", Buckets: buckets})
		m.resolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "docgraph_extract_resolve_seconds", Help: "Cross-call resolution duration", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "docgraph_extract_total_seconds", Help: "Total extraction run duration", Buckets: buckets})

		prometheus.MustRegister(
			m.filesExtracted, m.filesSkipped, m.parseErrors,
			m.classes, m.functions, m.calls,
			m.fileDuration, m.resolveDuration, m.totalDuration,
		)
	})
}

// record helpers - used by pipeline for metrics tracking
func recordExtracted(rec *Record, d time.Duration) {
	ingMetrics.init()
	ingMetrics.filesExtracted.WithLabelValues(string(rec.Type)).Inc()
	ingMetrics.classes.Add(float64(len(rec.Classes)))
	ingMetrics.functions.Add(float64(len(rec.Functions)))
	ingMetrics.calls.Add(float64(len(rec.Calls)))
	ingMetrics.fileDuration.Observe(d.Seconds())
}

func recordSkipped(reason string) {
	ingMetrics.init()
	ingMetrics.filesSkipped.WithLabelValues(reason).Inc()
}

func recordParseError() { ingMetrics.init(); ingMetrics.parseErrors.Inc() }

func recordResolveDuration(d time.Duration) {
	ingMetrics.init()
	ingMetrics.resolveDuration.Observe(d.Seconds())
}

func recordTotalDuration(d time.Duration) {
	ingMetrics.init()
	ingMetrics.totalDuration.Observe(d.Seconds())
}
