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

	"github.com/AleutianAI/CausalForge/pkg/dag"
	"github.com/AleutianAI/CausalForge/services/llm"
	"github.com/AleutianAI/CausalForge/services/retrieval"
	"github.com/stretchr/testify/require"
)

// scriptedExpert replays canned replies in order and records every prompt.
type scriptedExpert struct {
	t       *testing.T
	replies []string
	err     error
	prompts []string
}

func (s *scriptedExpert) Generate(ctx context.Context, prompt string,
	params llm.GenerationParams) (string, error) {

	if params.Temperature == nil || *params.Temperature != 0 {
		s.t.Errorf("expert called without deterministic sampling: %+v", params)
	}
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", fmt.Errorf("scripted expert exhausted")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

var _ llm.LLMClient = (*scriptedExpert)(nil)

// fixedExtractor returns the same snippets for every query.
type fixedExtractor struct {
	items []string
	err   error
}

func (f *fixedExtractor) ExtractKnowledge(ctx context.Context, query string) ([]string, error) {
	return f.items, f.err
}

// fixedRetriever returns the same hits for every query.
type fixedRetriever struct {
	hits []retrieval.Hit
	err  error
}

func (f *fixedRetriever) RetrieveBySimilarity(ctx context.Context, query string, topK int) ([]retrieval.Hit, error) {
	return f.hits, f.err
}

// testDAG is the well-formed DAG from the test scenarios: one known cause
// feeding the target through a single unjustified link.
func testDAG() *dag.DAG {
	d, err := dag.DecodeJSON([]byte(`{
		"target_variable": "v",
		"knowns": {},
		"causal_graph": [{"cause": "a", "effect": "v", "rule": ""}],
		"computation_plan": [{"id": "s1", "target": "v", "inputs": ["a"]}]
	}`))
	if err != nil {
		panic(err)
	}
	return d
}

// requireSameDAG asserts value equality between two DAGs via wire form.
func requireSameDAG(t *testing.T, want, got *dag.DAG) {
	t.Helper()
	wantJSON, err := want.MarshalJSON()
	require.NoError(t, err)
	gotJSON, err := got.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, string(wantJSON), string(gotJSON))
}
