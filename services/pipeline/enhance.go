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
	"log/slog"
	"strings"

	"github.com/AleutianAI/CausalForge/pkg/dag"
	"github.com/AleutianAI/CausalForge/pkg/extract"
	"github.com/AleutianAI/CausalForge/services/retrieval"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var enhanceTracer = otel.Tracer("causalforge.pipeline.enhance")

// minRuleLength is the local gap heuristic: a causal link whose rule text
// is shorter than this is treated as missing its justification.
const minRuleLength = 10

// vectorRetrievalThreshold: the similarity retriever is only consulted
// when the generative retriever produced fewer items than this.
const vectorRetrievalThreshold = 3

// EnhancementStage fills knowledge gaps in the DAG. It runs in three
// phases:
//
//  1. Gap identification: the expert is asked to find links lacking domain
//     justification; without an expert, a local rule flags empty or short
//     rule text.
//  2. Retrieval: the generative retriever is tried first; the similarity
//     retriever only when fewer than three items were already retrieved.
//     The retrievers are consulted strictly in sequence.
//  3. Injection: the expert is asked to decide AND perform the DAG edit.
//     If that yields no usable replacement, the retrieved items are
//     appended under knowledge_base as inert metadata. The fallback never
//     fails and needs no validation, since no required field changes
//     shape.
type EnhancementStage struct {
	expert     Expert
	generative retrieval.KnowledgeExtractor
	vector     retrieval.SimilarityRetriever
	templates  *Templates
	events     EventSink
}

// NewEnhancementStage builds an enhancement stage. Either retriever (or
// both) may be nil; templates and events default when nil.
func NewEnhancementStage(expert Expert, generative retrieval.KnowledgeExtractor,
	vector retrieval.SimilarityRetriever, templates *Templates, events EventSink) *EnhancementStage {

	if templates == nil {
		templates = DefaultTemplates()
	}
	if events == nil {
		events = &SlogSink{}
	}
	return &EnhancementStage{
		expert:     expert,
		generative: generative,
		vector:     vector,
		templates:  templates,
		events:     events,
	}
}

// Run executes the stage. Always returns a DAG and a report; the input DAG
// is returned unchanged for every outcome except a validated structural
// injection or the knowledge_base metadata fallback.
func (s *EnhancementStage) Run(ctx context.Context, d *dag.DAG, problem string) (out *dag.DAG, report StageReport) {
	ctx, span := enhanceTracer.Start(ctx, "EnhancementStage.Run")
	defer span.End()

	s.events.StageStarted(StageEnhancement)
	defer func() {
		if r := recover(); r != nil {
			out = d
			report = failedReport(StageEnhancement, fmt.Sprintf("internal error: %v", r))
		}
		span.SetAttributes(attribute.String("stage.status", string(report.Status)))
		stageOutcomesTotal.WithLabelValues(StageEnhancement, string(report.Status)).Inc()
		s.events.StageCompleted(report)
	}()

	// Phase 1: gap identification. Unlike the other stages there is no
	// up-front skip: gap detection has a local fallback, so the stage
	// always runs and an empty retrieval surfaces as no_retrieval.
	gaps, err := s.identifyGaps(ctx, d, problem)
	if err != nil {
		return d, failedReport(StageEnhancement, err.Error())
	}
	if len(gaps) == 0 {
		r := skippedReport(StageEnhancement, "")
		r.Status = StatusNoGaps
		return d, r
	}
	span.SetAttributes(attribute.Int("enhance.gaps", len(gaps)))

	// Phase 2: retrieval, generative first, vector only to top up.
	items := s.retrieve(ctx, problem, gaps)
	if len(items) == 0 {
		r := skippedReport(StageEnhancement, "no knowledge items retrieved")
		r.Status = StatusNoRetrieval
		r.Gaps = gaps
		return d, r
	}
	span.SetAttributes(attribute.Int("enhance.knowledge_items", len(items)))

	report = StageReport{
		Stage:          StageEnhancement,
		Status:         StatusSuccess,
		Issues:         []any{},
		Corrections:    []any{},
		Gaps:           gaps,
		KnowledgeItems: len(items),
	}

	// Phase 3: structural injection, falling back to inert metadata.
	if s.expert.Configured() {
		enhanced, applied, failure := s.inject(ctx, d, problem, items, gaps)
		if enhanced != nil {
			report.DAGModified = true
			report.InjectionMode = "structural"
			report.Injections = applied
			return enhanced, report
		}
		if failure != "" {
			// The rejected candidate's diagnostics survive even though
			// the fallback below still runs.
			report.ValidationFailure = failure
		}
	}

	fallback := d.Clone()
	fallback.KnowledgeBase = append(fallback.KnowledgeBase, items...)
	report.DAGModified = true
	report.InjectionMode = "knowledge_base"
	report.Injections = []any{fmt.Sprintf("appended %d knowledge items as metadata", len(items))}
	return fallback, report
}

// identifyGaps runs the expert gap call, or the local rule heuristic when
// no expert is configured.
func (s *EnhancementStage) identifyGaps(ctx context.Context, d *dag.DAG, problem string) ([]Gap, error) {
	if !s.expert.Configured() {
		return localGaps(d), nil
	}

	prompt, err := s.templates.Gaps(problem, d)
	if err != nil {
		return nil, err
	}
	reply, err := s.expert.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gap identification call failed: %w", err)
	}
	res := extract.Extract(reply, extract.Options{
		Required:      map[string]any{"knowledge_gaps": []any{}},
		Discriminator: "knowledge_gaps",
	})

	var gaps []Gap
	for _, raw := range anyList(res["knowledge_gaps"]) {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		gap := Gap{Type: "missing_rule"}
		if t, ok := m["type"].(string); ok && t != "" {
			gap.Type = t
		}
		gap.LinkIndex = intFromAny(m["link_index"])
		if e, ok := m["effect"].(string); ok {
			gap.Effect = e
		}
		if det, ok := m["detail"].(string); ok {
			gap.Detail = det
		}
		gaps = append(gaps, gap)
	}
	return gaps, nil
}

// localGaps flags every causal link whose rule text is absent or shorter
// than minRuleLength.
func localGaps(d *dag.DAG) []Gap {
	var gaps []Gap
	for i, link := range d.CausalGraph {
		rule := strings.TrimSpace(link.Rule)
		if len(rule) < minRuleLength {
			gaps = append(gaps, Gap{
				Type:      "missing_rule",
				LinkIndex: i,
				Effect:    link.Effect,
				Detail:    fmt.Sprintf("rule text %q does not justify the link", link.Rule),
			})
		}
	}
	return gaps
}

// retrieve consults the configured retrievers in order. Retriever errors
// degrade to fewer items rather than failing the stage; a completely empty
// result surfaces as no_retrieval upstream.
func (s *EnhancementStage) retrieve(ctx context.Context, problem string, gaps []Gap) []dag.KnowledgeItem {
	query := buildQuery(problem, gaps)
	var items []dag.KnowledgeItem

	if s.generative != nil {
		snippets, err := s.generative.ExtractKnowledge(ctx, query)
		if err != nil {
			slog.Warn("Generative retrieval failed", "error", err)
		}
		for _, snip := range snippets {
			items = append(items, dag.KnowledgeItem{Content: snip, Source: "llm"})
		}
	}

	if len(items) < vectorRetrievalThreshold && s.vector != nil {
		hits, err := s.vector.RetrieveBySimilarity(ctx, query, vectorRetrievalThreshold)
		if err != nil {
			slog.Warn("Similarity retrieval failed", "error", err)
		}
		for _, hit := range hits {
			items = append(items, dag.KnowledgeItem{
				Content:    hit.Content,
				Source:     "vector",
				Category:   hit.Category,
				Similarity: hit.Similarity,
			})
		}
	}
	return items
}

// buildQuery folds the problem text and gap descriptions into one
// retrieval query.
func buildQuery(problem string, gaps []Gap) string {
	parts := []string{problem}
	for _, gap := range gaps {
		if gap.Effect != "" {
			parts = append(parts, "causal rule for "+gap.Effect)
		}
		if gap.Detail != "" {
			parts = append(parts, gap.Detail)
		}
	}
	return strings.Join(parts, "; ")
}

// inject asks the expert to merge the knowledge into the DAG. Returns the
// accepted replacement with the applied-edit list, or (nil, diagnostic)
// when the reply had no usable enhanced_dag.
func (s *EnhancementStage) inject(ctx context.Context, d *dag.DAG, problem string,
	items []dag.KnowledgeItem, gaps []Gap) (*dag.DAG, []any, string) {

	prompt, err := s.templates.Injection(problem, d, items, gaps)
	if err != nil {
		return nil, nil, ""
	}
	reply, err := s.expert.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("Injection call failed, falling back to knowledge_base", "error", err)
		return nil, nil, ""
	}
	res := extract.Extract(reply, extract.Options{
		Required:      map[string]any{"applied": []any{}},
		Discriminator: "enhanced_dag",
	})
	candidate, present := res["enhanced_dag"]
	if !present {
		return nil, nil, ""
	}
	accepted, failure := acceptCandidate(candidate)
	if accepted == nil {
		slog.Warn("Injection candidate rejected", "failure", failure)
		return nil, nil, failure
	}
	return accepted, anyList(res["applied"]), ""
}
