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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineWithoutCollaborators(t *testing.T) {
	p := New(Config{Events: NopSink{}})
	in := testDAG()

	out, report := p.Run(context.Background(), in, "solve for v", SkipSet{})

	requireSameDAG(t, in, out)
	require.Len(t, report.Stages, 3)
	assert.Equal(t, StatusSkipped, report.StageNamed(StageReview).Status)
	// Enhancement still runs its local gap rule; with no retrievers the
	// empty-rule link ends the stage as no_retrieval, DAG untouched.
	assert.Equal(t, StatusNoRetrieval, report.StageNamed(StageEnhancement).Status)
	assert.Len(t, report.StageNamed(StageEnhancement).Gaps, 1)
	assert.Equal(t, StatusSkipped, report.StageNamed(StageOptimization).Status)
	// 0.5 base + 0.1 for the acyclic final structure, nothing else.
	assert.InDelta(t, 0.6, report.QualityScore, 1e-9)
	assert.True(t, report.Structure.IsDAG)
	assert.Equal(t, 2, report.Structure.NodeCount)
	assert.Equal(t, 1, report.Structure.EdgeCount)
	assert.NotEmpty(t, report.RunID)
}

func TestPipelineSkipDirectives(t *testing.T) {
	reply := `{"problem_domain":"math","issues":[],"corrections":[]}`
	expert := &scriptedExpert{t: t, replies: []string{reply, reply, reply}}
	p := New(Config{Expert: WithExpert(expert), Events: NopSink{}})

	_, report := p.Run(context.Background(), testDAG(), "solve for v",
		ParseSkips([]string{"rag", "structure"}))

	require.Len(t, report.Stages, 3)
	assert.Equal(t, StatusSuccess, report.StageNamed(StageReview).Status)
	assert.Equal(t, StatusSkipped, report.StageNamed(StageEnhancement).Status)
	assert.Equal(t, "skipped by caller", report.StageNamed(StageEnhancement).Reason)
	assert.Equal(t, StatusSkipped, report.StageNamed(StageOptimization).Status)
	assert.Len(t, expert.prompts, 1, "only the review stage reached the expert")
}

func TestPipelineThreadsDAGThroughStages(t *testing.T) {
	// Review replaces the DAG; enhancement must see the replacement.
	reviewReply := `{"problem_domain":"math","issues":[],"corrections":[{"fix":"rule"}],` +
		`"corrected_dag":{"target_variable":"v","knowns":{"a":1},` +
		`"causal_graph":[{"cause":"a","effect":"v","rule":"v equals a doubled exactly"}],` +
		`"computation_plan":[{"id":"s1","target":"v","inputs":["a"]}]}}`
	expert := &scriptedExpert{t: t, replies: []string{reviewReply}}
	p := New(Config{Expert: WithExpert(expert), Events: NopSink{}})

	out, report := p.Run(context.Background(), testDAG(), "solve for v",
		ParseSkips([]string{"rag", "structure"}))

	assert.Equal(t, "v equals a doubled exactly", out.CausalGraph[0].Rule)
	assert.Equal(t, 1, report.TotalCorrections)
	// 0.5 + 0.05 (one correction) + 0.1 (acyclic) = 0.65
	assert.InDelta(t, 0.65, report.QualityScore, 1e-9)
}

func TestPipelineFailedStagePassesThrough(t *testing.T) {
	expert := &scriptedExpert{t: t, err: assertErr("unreachable")}
	p := New(Config{Expert: WithExpert(expert), Events: NopSink{}})
	in := testDAG()

	out, report := p.Run(context.Background(), in, "solve for v",
		ParseSkips([]string{"rag", "structure"}))

	requireSameDAG(t, in, out)
	assert.Equal(t, StatusFailed, report.StageNamed(StageReview).Status)
	assert.Contains(t, report.StageNamed(StageReview).Error, "unreachable")
}

func TestPipelineSingleStageEntryPoints(t *testing.T) {
	p := New(Config{Events: NopSink{}})
	in := testDAG()

	out, sr := p.Review(context.Background(), in, "q")
	assert.Same(t, in, out)
	assert.Equal(t, StageReview, sr.Stage)

	out, sr = p.Enhance(context.Background(), in, "q")
	assert.Same(t, in, out)
	assert.Equal(t, StageEnhancement, sr.Stage)

	out, sr = p.Optimize(context.Background(), in, "q")
	assert.Same(t, in, out)
	assert.Equal(t, StageOptimization, sr.Stage)
}

func TestParseSkips(t *testing.T) {
	assert.Equal(t, SkipSet{}, ParseSkips(nil))
	assert.Equal(t, SkipSet{Expert: true, RAG: true, Structure: true},
		ParseSkips([]string{"expert", "rag", "structure", "bogus"}))
}

func TestQualityScoreBounds(t *testing.T) {
	tests := []struct {
		name                                string
		issues, corrections, know, patterns int
		isDAG                               bool
		want                                float64
	}{
		{"base only", 0, 0, 0, 0, false, 0.5},
		{"base plus dag", 0, 0, 0, 0, true, 0.6},
		{"corrections capped", 0, 100, 0, 0, false, 0.7},
		{"knowledge capped", 0, 0, 100, 0, false, 0.65},
		{"patterns capped", 0, 0, 0, 100, false, 0.6},
		{"issues capped", 100, 0, 0, 0, false, 0.35},
		{"everything maxed", 0, 100, 100, 100, true, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := qualityScore(tt.issues, tt.corrections, tt.know, tt.patterns, tt.isDAG)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestTemplatesRenderAllStages(t *testing.T) {
	tmpl := DefaultTemplates()
	d := testDAG()

	for name, render := range map[string]func() (string, error){
		"review":   func() (string, error) { return tmpl.Review("p", d) },
		"gaps":     func() (string, error) { return tmpl.Gaps("p", d) },
		"optimize": func() (string, error) { return tmpl.Optimize("p", d) },
		"injection": func() (string, error) {
			return tmpl.Injection("p", d, nil, []Gap{{Type: "missing_rule"}})
		},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := render()
			require.NoError(t, err)
			assert.Contains(t, out, `"target_variable"`)
		})
	}
}
