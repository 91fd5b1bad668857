// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline implements the three-stage causal DAG refinement
// pipeline: Review, Enhancement, Optimization.
//
// Each stage receives the current DAG and the problem text, consults an
// optional expert collaborator, and returns either the unchanged input DAG
// or a validated replacement, together with a StageReport saying what
// happened. Failures never escape a stage boundary: the worst case for any
// run is "all stages skipped or failed, original DAG returned, report
// documents why".
//
// The Pipeline type (orchestrator.go) wires the stages in fixed order and
// aggregates their reports into a PipelineReport with a heuristic quality
// score.
package pipeline

import "math"

// Stage names as they appear in reports and metrics.
const (
	StageReview       = "review"
	StageEnhancement  = "enhancement"
	StageOptimization = "optimization"
)

// StageStatus is the explicit result type every stage returns; the
// orchestrator branches on these rather than on errors.
type StageStatus string

const (
	// StatusSuccess: the stage ran to completion. The DAG may or may not
	// have been replaced; see StageReport.DAGModified.
	StatusSuccess StageStatus = "success"

	// StatusSkipped: no collaborator configured, caller directive, or the
	// optimization stage's empty-graph short circuit. DAG unchanged.
	StatusSkipped StageStatus = "skipped"

	// StatusFailed: the collaborator call or stage internals failed. The
	// error is in StageReport.Error. DAG unchanged.
	StatusFailed StageStatus = "failed"

	// StatusValidationFailed: the collaborator proposed a replacement DAG
	// that failed schema validation. Candidate discarded, DAG unchanged,
	// diagnostics preserved in the report.
	StatusValidationFailed StageStatus = "validation_failed"

	// StatusNoGaps: enhancement found no knowledge gaps. DAG unchanged.
	StatusNoGaps StageStatus = "no_gaps"

	// StatusNoRetrieval: enhancement found gaps but no retriever produced
	// any knowledge items. DAG unchanged.
	StatusNoRetrieval StageStatus = "no_retrieval"
)

// Gap is one stage-identified missing piece of domain justification.
type Gap struct {
	// Type classifies the gap; "missing_rule" for the local empty/short
	// rule heuristic.
	Type string `json:"type"`

	// LinkIndex is the causal_graph index the gap refers to.
	LinkIndex int `json:"link_index"`

	// Effect is the link's effect variable, for readability.
	Effect string `json:"effect"`

	Detail string `json:"detail,omitempty"`
}

// PatternCounts are the chain/fork/collider tallies sourced from the
// optimization collaborator's own classification. The pipeline only copies
// them through; it never detects patterns itself.
type PatternCounts struct {
	Chains    int `json:"chains"`
	Forks     int `json:"forks"`
	Colliders int `json:"colliders"`
}

// Total returns the summed pattern count.
func (p PatternCounts) Total() int { return p.Chains + p.Forks + p.Colliders }

// StructureInfo is graph metadata computed for the final DAG. These are
// report fields only, never validation gates.
type StructureInfo struct {
	NodeCount   int  `json:"node_count"`
	EdgeCount   int  `json:"edge_count"`
	IsDAG       bool `json:"is_dag"`
	IsConnected bool `json:"is_connected"`
}

// StageReport records one stage invocation. Created fresh per invocation
// and never mutated after return.
type StageReport struct {
	Stage  string      `json:"stage"`
	Status StageStatus `json:"status"`

	// Error is set when Status is failed.
	Error string `json:"error,omitempty"`

	// Reason explains skips and no-change outcomes
	// ("no collaborator configured", "empty_graph", ...).
	Reason string `json:"reason,omitempty"`

	// DAGModified reports whether the stage returned a replacement DAG.
	DAGModified bool `json:"dag_modified"`

	// ProblemDomain echoes the review collaborator's classification.
	ProblemDomain string `json:"problem_domain,omitempty"`

	// Issues are detected problems: review issues or the optimization
	// stage's structural issues. Preserved even when a candidate DAG was
	// rejected; diagnostics outlive the rejected DAG.
	Issues []any `json:"issues"`

	// Corrections are the review collaborator's applied corrections.
	Corrections []any `json:"corrections"`

	// Modifications are the optimization collaborator's applied edits.
	Modifications []any `json:"modifications,omitempty"`

	// Gaps and Injections belong to the enhancement stage.
	Gaps       []Gap `json:"gaps,omitempty"`
	Injections []any `json:"injections,omitempty"`

	// InjectionMode is "structural" when the collaborator rewired the DAG,
	// "knowledge_base" for the inert-metadata fallback.
	InjectionMode string `json:"injection_mode,omitempty"`

	// KnowledgeItems is how many knowledge snippets retrieval produced.
	KnowledgeItems int `json:"knowledge_items,omitempty"`

	// Patterns carries the collaborator's chain/fork/collider tallies.
	Patterns PatternCounts `json:"patterns"`

	// ValidationFailure is the validator's diagnostic when Status is
	// validation_failed.
	ValidationFailure string `json:"validation_failure,omitempty"`
}

// PipelineReport aggregates the per-stage reports for one run.
type PipelineReport struct {
	RunID  string        `json:"run_id"`
	Stages []StageReport `json:"stages"`

	Structure StructureInfo `json:"structure"`

	TotalIssues      int `json:"total_issues"`
	TotalCorrections int `json:"total_corrections"`
	TotalKnowledge   int `json:"total_knowledge_items"`
	TotalPatterns    int `json:"total_patterns"`

	// QualityScore is a bounded heuristic in [0,1]. Informational only; it
	// gates nothing.
	QualityScore float64 `json:"quality_score"`
}

// StageNamed returns the report for the named stage, or nil.
func (r *PipelineReport) StageNamed(name string) *StageReport {
	for i := range r.Stages {
		if r.Stages[i].Stage == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// qualityScore computes the heuristic score:
//
//	base 0.5
//	+ min(0.2,  0.05 * corrections)
//	+ min(0.15, 0.03 * knowledge items)
//	+ 0.1 if the final structure is a DAG
//	+ min(0.1,  0.02 * total pattern count)
//	- min(0.15, 0.05 * structural issue count)
//
// clamped to [0, 1].
func qualityScore(structuralIssues, corrections, knowledgeItems, patterns int, isDAG bool) float64 {
	score := 0.5
	score += math.Min(0.2, 0.05*float64(corrections))
	score += math.Min(0.15, 0.03*float64(knowledgeItems))
	if isDAG {
		score += 0.1
	}
	score += math.Min(0.1, 0.02*float64(patterns))
	score -= math.Min(0.15, 0.05*float64(structuralIssues))
	return math.Max(0, math.Min(1, score))
}

// skippedReport builds the uniform report for a stage that did not run.
func skippedReport(stage, reason string) StageReport {
	return StageReport{
		Stage:       stage,
		Status:      StatusSkipped,
		Reason:      reason,
		Issues:      []any{},
		Corrections: []any{},
	}
}

// failedReport builds the uniform report for a stage-boundary failure.
func failedReport(stage, errMsg string) StageReport {
	return StageReport{
		Stage:       stage,
		Status:      StatusFailed,
		Error:       errMsg,
		Issues:      []any{},
		Corrections: []any{},
	}
}
