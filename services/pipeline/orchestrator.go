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

	"github.com/AleutianAI/CausalForge/pkg/dag"
	"github.com/AleutianAI/CausalForge/services/retrieval"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var orchestratorTracer = otel.Tracer("causalforge.pipeline.orchestrator")

// SkipSet holds the caller's per-stage skip directives. The wire names
// match the stages' collaborator kinds: "expert" (review), "rag"
// (enhancement), "structure" (optimization).
type SkipSet struct {
	Expert    bool
	RAG       bool
	Structure bool
}

// ParseSkips builds a SkipSet from wire names. Unknown names are ignored.
func ParseSkips(names []string) SkipSet {
	var s SkipSet
	for _, name := range names {
		switch name {
		case "expert":
			s.Expert = true
		case "rag":
			s.RAG = true
		case "structure":
			s.Structure = true
		}
	}
	return s
}

// Config wires a Pipeline. Every collaborator is optional; an entirely
// unconfigured pipeline still runs enhancement's local gap rule but
// never modifies the DAG.
type Config struct {
	Expert     Expert
	Generative retrieval.KnowledgeExtractor
	Vector     retrieval.SimilarityRetriever
	Templates  *Templates
	Events     EventSink
}

// Pipeline runs Review, Enhancement, and Optimization in fixed order,
// threading the DAG forward regardless of each stage's status.
//
// Stateless after construction; safe for concurrent Run calls as long as
// the collaborator handles are individually safe for concurrent use.
type Pipeline struct {
	review   *ReviewStage
	enhance  *EnhancementStage
	optimize *OptimizationStage
	events   EventSink
}

// New builds a Pipeline from a Config.
func New(cfg Config) *Pipeline {
	if cfg.Templates == nil {
		cfg.Templates = DefaultTemplates()
	}
	if cfg.Events == nil {
		cfg.Events = &SlogSink{}
	}
	return &Pipeline{
		review:   NewReviewStage(cfg.Expert, cfg.Templates, cfg.Events),
		enhance:  NewEnhancementStage(cfg.Expert, cfg.Generative, cfg.Vector, cfg.Templates, cfg.Events),
		optimize: NewOptimizationStage(cfg.Expert, cfg.Templates, cfg.Events),
		events:   cfg.Events,
	}
}

// Review exposes the single-stage entry point for direct invocation.
func (p *Pipeline) Review(ctx context.Context, d *dag.DAG, problem string) (*dag.DAG, StageReport) {
	return p.review.Run(ctx, d, problem)
}

// Enhance exposes the single-stage entry point for direct invocation.
func (p *Pipeline) Enhance(ctx context.Context, d *dag.DAG, problem string) (*dag.DAG, StageReport) {
	return p.enhance.Run(ctx, d, problem)
}

// Optimize exposes the single-stage entry point for direct invocation.
func (p *Pipeline) Optimize(ctx context.Context, d *dag.DAG, problem string) (*dag.DAG, StageReport) {
	return p.optimize.Run(ctx, d, problem)
}

// Run threads the DAG through all three stages and aggregates the
// per-stage reports.
//
// # Description
//
// A skipped or failed stage passes its input DAG through unchanged, so
// callers always receive a DAG: either the input value or a chain of
// validated replacements. Reports are aggregated read-only; the quality
// score is informational and gates nothing.
//
// # Inputs
//
//   - ctx: cancellation and tracing.
//   - d: the input DAG. Trusted, never validated or mutated.
//   - problem: problem description text given to every collaborator.
//   - skip: caller directives to skip individual stages.
//
// # Outputs
//
//   - *dag.DAG: the final DAG.
//   - *PipelineReport: per-stage reports plus summary.
func (p *Pipeline) Run(ctx context.Context, d *dag.DAG, problem string, skip SkipSet) (*dag.DAG, *PipelineReport) {
	ctx, span := orchestratorTracer.Start(ctx, "Pipeline.Run")
	defer span.End()

	report := &PipelineReport{RunID: uuid.NewString()}
	span.SetAttributes(attribute.String("pipeline.run_id", report.RunID))

	current := d

	if skip.Expert {
		report.Stages = append(report.Stages, skippedReport(StageReview, "skipped by caller"))
	} else {
		var sr StageReport
		current, sr = p.review.Run(ctx, current, problem)
		report.Stages = append(report.Stages, sr)
	}

	if skip.RAG {
		report.Stages = append(report.Stages, skippedReport(StageEnhancement, "skipped by caller"))
	} else {
		var sr StageReport
		current, sr = p.enhance.Run(ctx, current, problem)
		report.Stages = append(report.Stages, sr)
	}

	if skip.Structure {
		report.Stages = append(report.Stages, skippedReport(StageOptimization, "skipped by caller"))
	} else {
		var sr StageReport
		current, sr = p.optimize.Run(ctx, current, problem)
		report.Stages = append(report.Stages, sr)
	}

	p.summarize(current, report)

	pipelineRunsTotal.Inc()
	qualityScoreObserved.Observe(report.QualityScore)
	span.SetAttributes(attribute.Float64("pipeline.quality_score", report.QualityScore))
	return current, report
}

// summarize fills the aggregate fields and the quality score. Structure
// metadata is computed for real from the final DAG's graph.
func (p *Pipeline) summarize(final *dag.DAG, report *PipelineReport) {
	graph := dag.Build(final)
	report.Structure = StructureInfo{
		NodeCount:   graph.NodeCount(),
		EdgeCount:   graph.EdgeCount(),
		IsDAG:       graph.IsAcyclic(),
		IsConnected: graph.IsConnected(),
	}

	structuralIssues := 0
	for _, sr := range report.Stages {
		report.TotalIssues += len(sr.Issues)
		report.TotalCorrections += len(sr.Corrections) + len(sr.Modifications)
		report.TotalKnowledge += sr.KnowledgeItems
		report.TotalPatterns += sr.Patterns.Total()
		if sr.Stage == StageOptimization {
			structuralIssues = len(sr.Issues)
		}
	}

	report.QualityScore = qualityScore(
		structuralIssues,
		report.TotalCorrections,
		report.TotalKnowledge,
		report.TotalPatterns,
		report.Structure.IsDAG,
	)
}
