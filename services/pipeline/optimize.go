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

var optimizeTracer = otel.Tracer("causalforge.pipeline.optimize")

// OptimizationStage asks the expert collaborator to classify causal
// patterns (chains, forks, colliders), flag structural issues, and
// simplify the graph.
//
// Pattern classification is entirely the collaborator's: the stage copies
// the tallies through without recomputing them. An empty causal graph
// short-circuits the whole stage.
type OptimizationStage struct {
	expert    Expert
	templates *Templates
	events    EventSink
}

// NewOptimizationStage builds an optimization stage. templates and events
// may be nil; defaults are substituted.
func NewOptimizationStage(expert Expert, templates *Templates, events EventSink) *OptimizationStage {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if events == nil {
		events = &SlogSink{}
	}
	return &OptimizationStage{expert: expert, templates: templates, events: events}
}

// Run executes the stage. Always returns a DAG and a report; the same
// rollback discipline as the other stages applies.
func (s *OptimizationStage) Run(ctx context.Context, d *dag.DAG, problem string) (out *dag.DAG, report StageReport) {
	ctx, span := optimizeTracer.Start(ctx, "OptimizationStage.Run")
	defer span.End()

	s.events.StageStarted(StageOptimization)
	defer func() {
		if r := recover(); r != nil {
			out = d
			report = failedReport(StageOptimization, fmt.Sprintf("internal error: %v", r))
		}
		span.SetAttributes(attribute.String("stage.status", string(report.Status)))
		stageOutcomesTotal.WithLabelValues(StageOptimization, string(report.Status)).Inc()
		s.events.StageCompleted(report)
	}()

	if graph := dag.Build(d); graph.IsEmpty() {
		return d, skippedReport(StageOptimization, "empty_graph")
	}
	if !s.expert.Configured() {
		return d, skippedReport(StageOptimization, "no expert collaborator configured")
	}

	prompt, err := s.templates.Optimize(problem, d)
	if err != nil {
		return d, failedReport(StageOptimization, err.Error())
	}
	reply, err := s.expert.Complete(ctx, prompt)
	if err != nil {
		return d, failedReport(StageOptimization, fmt.Sprintf("expert call failed: %v", err))
	}

	res := extract.Extract(reply, extract.Options{
		Required: map[string]any{
			"patterns":          map[string]any{},
			"structural_issues": []any{},
			"modifications":     []any{},
		},
		Discriminator: "patterns",
	})

	report = StageReport{
		Stage:         StageOptimization,
		Status:        StatusSuccess,
		Issues:        anyList(res["structural_issues"]),
		Corrections:   []any{},
		Modifications: anyList(res["modifications"]),
		Patterns:      parsePatterns(res["patterns"]),
	}
	span.SetAttributes(attribute.Int("optimize.patterns", report.Patterns.Total()))

	candidate, present := res["optimized_dag"]
	if !present {
		report.Reason = "collaborator omitted optimized_dag"
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

// parsePatterns copies the collaborator's chain/fork/collider tallies.
// Counts may arrive as numbers or as lists of instances.
func parsePatterns(v any) PatternCounts {
	m, ok := v.(map[string]any)
	if !ok {
		return PatternCounts{}
	}
	return PatternCounts{
		Chains:    intFromAny(m["chains"]),
		Forks:     intFromAny(m["forks"]),
		Colliders: intFromAny(m["colliders"]),
	}
}
