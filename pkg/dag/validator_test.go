// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wellFormed returns a minimal candidate that satisfies every check.
func wellFormed() map[string]any {
	return map[string]any{
		"target_variable": "v",
		"knowns":          map[string]any{"a": 2.0},
		"causal_graph": []any{
			map[string]any{"cause": "a", "effect": "v", "rule": "v = 2a"},
		},
		"computation_plan": []any{
			map[string]any{"id": "s1", "target": "v", "inputs": []any{"a"}},
		},
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	assert.True(t, Validate(wellFormed()))
}

func TestValidateAcceptsEmptySequences(t *testing.T) {
	c := wellFormed()
	c["causal_graph"] = []any{}
	c["computation_plan"] = []any{}
	assert.True(t, Validate(c), "empty sequences satisfy the sequence checks")
}

func TestValidateMissingTopLevelKeys(t *testing.T) {
	for _, key := range []string{"target_variable", "knowns", "causal_graph", "computation_plan"} {
		t.Run(key, func(t *testing.T) {
			c := wellFormed()
			delete(c, key)
			res := ValidateDetailed(c)
			assert.False(t, res.Valid)
			assert.Contains(t, res.Failure, key)
		})
	}
}

func TestValidateLinkMissingKeys(t *testing.T) {
	for _, key := range []string{"cause", "effect", "rule"} {
		t.Run(key, func(t *testing.T) {
			c := wellFormed()
			link := c["causal_graph"].([]any)[0].(map[string]any)
			delete(link, key)
			res := ValidateDetailed(c)
			assert.False(t, res.Valid)
			assert.Contains(t, res.Failure, key)
		})
	}
}

func TestValidateStepMissingKeys(t *testing.T) {
	for _, key := range []string{"id", "target", "inputs"} {
		t.Run(key, func(t *testing.T) {
			c := wellFormed()
			step := c["computation_plan"].([]any)[0].(map[string]any)
			delete(step, key)
			assert.False(t, Validate(c))
		})
	}
}

func TestValidateRejectsNonSequenceGraph(t *testing.T) {
	c := wellFormed()
	// Collaborators occasionally emit a mapping where a list belongs.
	c["causal_graph"] = map[string]any{"cause": "a", "effect": "v", "rule": ""}
	res := ValidateDetailed(c)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Failure, "causal_graph is not a sequence")
}

func TestValidateRejectsNonMappingElements(t *testing.T) {
	c := wellFormed()
	c["computation_plan"] = []any{"not a step"}
	res := ValidateDetailed(c)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Failure, "computation_plan[0]")
}

func TestValidateNeverPanics(t *testing.T) {
	for _, candidate := range []any{nil, "text", 42, []any{1, 2}, map[string]any{}} {
		assert.NotPanics(t, func() { Validate(candidate) })
		assert.False(t, Validate(candidate))
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	c := wellFormed()
	c["confidence"] = 0.9 // unknown field survives in Extra
	d, err := Decode(c)
	require.NoError(t, err)
	assert.Equal(t, "v", d.TargetVariable)
	require.Len(t, d.CausalGraph, 1)
	assert.Equal(t, []string{"a"}, d.CausalGraph[0].Cause.IDs())
	assert.Contains(t, d.Extra, "confidence")

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"confidence"`)
	assert.Contains(t, string(raw), `"cause":"a"`, "single cause round-trips as a string")
}

func TestCauseRefList(t *testing.T) {
	d, err := DecodeJSON([]byte(`{
		"target_variable":"z","knowns":{},
		"causal_graph":[{"cause":["x","y"],"effect":"z","rule":"z = x*y"}],
		"computation_plan":[]
	}`))
	require.NoError(t, err)
	require.Len(t, d.CausalGraph, 1)
	assert.True(t, d.CausalGraph[0].Cause.IsMulti())
	assert.Equal(t, []string{"x", "y"}, d.CausalGraph[0].Cause.IDs())
}

func TestCloneIsDeep(t *testing.T) {
	d, err := Decode(wellFormed())
	require.NoError(t, err)
	cp := d.Clone()
	cp.Knowns["b"] = 3
	cp.CausalGraph[0].Rule = "changed"
	cp.ComputationPlan[0].Inputs[0] = "changed"
	assert.NotContains(t, d.Knowns, "b")
	assert.Equal(t, "v = 2a", d.CausalGraph[0].Rule)
	assert.Equal(t, "a", d.ComputationPlan[0].Inputs[0])
}
