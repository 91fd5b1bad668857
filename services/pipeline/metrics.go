// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "causalforge_pipeline_runs_total",
		Help: "Completed pipeline runs.",
	})

	stageOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causalforge_stage_outcomes_total",
		Help: "Stage completions by stage and status.",
	}, []string{"stage", "status"})

	qualityScoreObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "causalforge_quality_score",
		Help:    "Heuristic quality score distribution.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
)
