// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewOpts() Options {
	return Options{
		Required: map[string]any{
			"problem_domain": "unknown",
			"issues":         []any{},
			"corrections":    []any{},
		},
		Discriminator: "problem_domain",
	}
}

func TestExtractFencedBlock(t *testing.T) {
	raw := "Here is my analysis.\n```json\n{\"problem_domain\": \"physics\", \"issues\": [1]}\n```\nDone."
	res := Extract(raw, reviewOpts())
	assert.Equal(t, "physics", res["problem_domain"])
	assert.Equal(t, []any{float64(1)}, res["issues"])
	assert.Equal(t, []any{}, res["corrections"], "missing key filled with default")
}

func TestExtractIgnoresUntaggedFence(t *testing.T) {
	// An untagged fence holding prose must not poison extraction; the
	// balanced scan should still find the object after it.
	raw := "```\nnot json at all\n```\ntext {\"problem_domain\": \"math\", \"issues\": []} text"
	res := Extract(raw, reviewOpts())
	assert.Equal(t, "math", res["problem_domain"])
}

func TestExtractBalancedScanWithProse(t *testing.T) {
	raw := `Sure! Here is the answer: {"problem_domain":"math","issues":[{"node":"a"}],"corrections":[],` +
		`"corrected_dag":{"target_variable":"v","knowns":{},"causal_graph":[],"computation_plan":[]}}`
	res := Extract(raw, reviewOpts())
	assert.Equal(t, "math", res["problem_domain"])
	issues, ok := res["issues"].([]any)
	require.True(t, ok)
	assert.Len(t, issues, 1)
	assert.Contains(t, res, "corrected_dag")
}

func TestExtractDiscriminatorSkipsUnrelatedObject(t *testing.T) {
	// The first balanced object lacks the discriminator; the second one
	// must be chosen instead.
	raw := `config: {"verbose": true} and result: {"problem_domain": "chem", "issues": []}`
	res := Extract(raw, reviewOpts())
	assert.Equal(t, "chem", res["problem_domain"])
	assert.NotContains(t, res, "verbose")
}

func TestExtractBracesInsideStrings(t *testing.T) {
	raw := `{"problem_domain": "math", "issues": [], "note": "beware } of { braces"}`
	res := Extract(raw, reviewOpts())
	assert.Equal(t, "math", res["problem_domain"])
	assert.Equal(t, "beware } of { braces", res["note"])
}

func TestExtractGreedyFallback(t *testing.T) {
	// No fence, and the balanced scan rejects the object because the
	// discriminator is absent; greedy still recovers it.
	raw := `prefix {"issues": [], "corrections": [{"fix": 1}]} suffix`
	res := Extract(raw, reviewOpts())
	assert.Equal(t, "unknown", res["problem_domain"], "default supplied")
	assert.Len(t, res["corrections"], 1)
}

func TestExtractTotalFunction(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"plain prose", "I could not produce a structured answer, sorry."},
		{"unbalanced braces", "{{{ nope }"},
		{"array not object", `[1, 2, 3]`},
		{"stray closers", "}}} hello }"},
		{"non-json braces", "f(x) = {x: x > 0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			assert.NotPanics(t, func() { res = Extract(tt.raw, reviewOpts()) })
			require.NotNil(t, res)
			assert.Equal(t, "unknown", res["problem_domain"])
			assert.Equal(t, []any{}, res["issues"])
			assert.Equal(t, []any{}, res["corrections"])
		})
	}
}

func TestExtractNestedObjects(t *testing.T) {
	// Depth tracking must not stop at the first inner '}'.
	raw := `{"problem_domain": "math", "issues": [], "corrected_dag": {"knowns": {"a": {"unit": "m"}}}}`
	res := Extract(raw, reviewOpts())
	dag, ok := res["corrected_dag"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, dag, "knowns")
}

func TestExtractNoDiscriminatorTakesFirstObject(t *testing.T) {
	raw := `{"gaps": [1]} {"gaps": [2]}`
	res := Extract(raw, Options{Required: map[string]any{"gaps": []any{}}})
	assert.Equal(t, []any{float64(1)}, res["gaps"])
}
