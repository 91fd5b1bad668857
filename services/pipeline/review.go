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
	"context"
	"fmt"

	"github.com/AleutianAI/CausalForge/pkg/dag"
	"github.com/AleutianAI/CausalForge/pkg/extract"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var reviewTracer = otel.Tracer("causalforge.pipeline.review")

// ReviewStage asks the expert collaborator to check the DAG for wrong
// causal directions, missing variables, and inconsistent computation steps,
// and to return a corrected DAG.
//
// When the collaborator reports issues but omits corrected_dag, the stage
// keeps the input DAG and surfaces the issue list anyway (report-only
// mode).
type ReviewStage struct {
	expert    Expert
	templates *Templates
	events    EventSink
}

// NewReviewStage builds a review stage. templates and events may be nil;
// defaults are substituted.
func NewReviewStage(expert Expert, templates *Templates, events EventSink) *ReviewStage {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if events == nil {
		events = &SlogSink{}
	}
	return &ReviewStage{expert: expert, templates: templates, events: events}
}

// Run executes the stage.
//
// # Description
//
// Always returns a DAG and a report, never an error: collaborator
// failures, unparsable replies, rejected candidates, and panics all
// collapse to "input DAG unchanged, report says why".
//
// # Inputs
//
//   - ctx: carries cancellation and tracing.
//   - d: the current DAG. Never mutated.
//   - problem: the problem description text.
//
// # Outputs
//
//   - *dag.DAG: the accepted replacement, or d unchanged.
//   - StageReport: status plus issues/corrections diagnostics.
func (s *ReviewStage) Run(ctx context.Context, d *dag.DAG, problem string) (out *dag.DAG, report StageReport) {
	ctx, span := reviewTracer.Start(ctx, "ReviewStage.Run")
	defer span.End()

	s.events.StageStarted(StageReview)
	defer func() {
		if r := recover(); r != nil {
			out = d
			report = failedReport(StageReview, fmt.Sprintf("internal error: %v", r))
		}
		span.SetAttributes(attribute.String("stage.status", string(report.Status)))
		stageOutcomesTotal.WithLabelValues(StageReview, string(report.Status)).Inc()
		s.events.StageCompleted(report)
	}()

	if !s.expert.Configured() {
		return d, skippedReport(StageReview, "no expert collaborator configured")
	}

	prompt, err := s.templates.Review(problem, d)
	if err != nil {
		return d, failedReport(StageReview, err.Error())
	}
	reply, err := s.expert.Complete(ctx, prompt)
	if err != nil {
		return d, failedReport(StageReview, fmt.Sprintf("expert call failed: %v", err))
	}

	res := extract.Extract(reply, extract.Options{
		Required: map[string]any{
			"problem_domain": "unknown",
			"issues":         []any{},
			"corrections":    []any{},
		},
		Discriminator: "problem_domain",
	})

	report = StageReport{
		Stage:       StageReview,
		Status:      StatusSuccess,
		Issues:      anyList(res["issues"]),
		Corrections: anyList(res["corrections"]),
	}
	if domain, ok := res["problem_domain"].(string); ok {
		report.ProblemDomain = domain
	}

	candidate, present := res["corrected_dag"]
	if !present {
		report.Reason = "collaborator omitted corrected_dag"
		return d, report
	}

	accepted, failure := acceptCandidate(candidate)
	if accepted == nil {
		report.Status = StatusValidationFailed
		report.ValidationFailure = failure
		return d, report
	}
	report.DAGModified = true
	return accepted, report
}
