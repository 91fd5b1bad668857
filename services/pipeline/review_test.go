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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewSkipsWithoutExpert(t *testing.T) {
	stage := NewReviewStage(NoExpert(), nil, NopSink{})
	in := testDAG()

	out, report := stage.Run(context.Background(), in, "solve for v")

	assert.Same(t, in, out, "skip must return the exact input DAG")
	assert.Equal(t, StatusSkipped, report.Status)
	assert.False(t, report.DAGModified)
}

func TestReviewAcceptsCorrectedDAG(t *testing.T) {
	// Collaborator reply wrapped in prose; the balanced scan must locate
	// the object via the problem_domain discriminator.
	reply := `Sure! Here is the answer: {"problem_domain":"math","issues":[{"node":"a"}],` +
		`"corrections":[],"corrected_dag":{"target_variable":"v","knowns":{},` +
		`"causal_graph":[],"computation_plan":[]}}`
	expert := &scriptedExpert{t: t, replies: []string{reply}}
	stage := NewReviewStage(WithExpert(expert), nil, NopSink{})

	out, report := stage.Run(context.Background(), testDAG(), "solve for v")

	assert.Equal(t, StatusSuccess, report.Status)
	assert.True(t, report.DAGModified)
	assert.Equal(t, "math", report.ProblemDomain)
	assert.Len(t, report.Issues, 1)
	assert.Len(t, report.Corrections, 0)
	assert.Empty(t, out.CausalGraph, "corrected DAG with empty sequences was accepted")
	assert.Equal(t, "v", out.TargetVariable)
}

func TestReviewRollbackOnValidationFailure(t *testing.T) {
	// causal_graph is a mapping instead of a sequence: candidate rejected,
	// but issues/corrections from the raw reply survive in the report.
	reply := `{"problem_domain":"math","issues":[{"node":"a"}],"corrections":[{"fix":"swap"}],` +
		`"corrected_dag":{"target_variable":"v","knowns":{},` +
		`"causal_graph":{"cause":"a","effect":"v","rule":""},"computation_plan":[]}}`
	expert := &scriptedExpert{t: t, replies: []string{reply}}
	stage := NewReviewStage(WithExpert(expert), nil, NopSink{})
	in := testDAG()

	out, report := stage.Run(context.Background(), in, "solve for v")

	assert.Equal(t, StatusValidationFailed, report.Status)
	assert.Contains(t, report.ValidationFailure, "causal_graph")
	requireSameDAG(t, in, out)
	assert.Len(t, report.Issues, 1, "diagnostics outlive the rejected DAG")
	assert.Len(t, report.Corrections, 1)
}

func TestReviewReportOnlyWhenCorrectedDAGOmitted(t *testing.T) {
	reply := `{"problem_domain":"physics","issues":[{"node":"a","description":"unit mismatch"}],"corrections":[]}`
	expert := &scriptedExpert{t: t, replies: []string{reply}}
	stage := NewReviewStage(WithExpert(expert), nil, NopSink{})
	in := testDAG()

	out, report := stage.Run(context.Background(), in, "solve for v")

	assert.Equal(t, StatusSuccess, report.Status)
	assert.False(t, report.DAGModified)
	assert.Same(t, in, out)
	assert.Len(t, report.Issues, 1)
}

func TestReviewFailedExpertCall(t *testing.T) {
	expert := &scriptedExpert{t: t, err: fmt.Errorf("connection refused")}
	stage := NewReviewStage(WithExpert(expert), nil, NopSink{})
	in := testDAG()

	out, report := stage.Run(context.Background(), in, "solve for v")

	assert.Equal(t, StatusFailed, report.Status)
	assert.Contains(t, report.Error, "connection refused")
	assert.Same(t, in, out)
}

func TestReviewUnparsableReply(t *testing.T) {
	expert := &scriptedExpert{t: t, replies: []string{"I cannot help with that."}}
	stage := NewReviewStage(WithExpert(expert), nil, NopSink{})
	in := testDAG()

	out, report := stage.Run(context.Background(), in, "solve for v")

	// Empty default-shaped result: no corrected_dag, nothing changes.
	assert.Equal(t, StatusSuccess, report.Status)
	assert.False(t, report.DAGModified)
	assert.Same(t, in, out)
	assert.Equal(t, "unknown", report.ProblemDomain)
	assert.Empty(t, report.Issues)
}

func TestReviewPromptCarriesProblemAndDAG(t *testing.T) {
	expert := &scriptedExpert{t: t, replies: []string{`{"problem_domain":"x","issues":[],"corrections":[]}`}}
	stage := NewReviewStage(WithExpert(expert), nil, NopSink{})

	_, _ = stage.Run(context.Background(), testDAG(), "find the velocity v")

	require.Len(t, expert.prompts, 1)
	assert.Contains(t, expert.prompts[0], "find the velocity v")
	assert.Contains(t, expert.prompts[0], `"target_variable"`)
}
