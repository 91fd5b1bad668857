// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AleutianAI/CausalForge/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

// stubLLM replays a canned reply and records the prompt it was given.
type stubLLM struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string,
	params llm.GenerationParams) (string, error) {

	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func TestLLMKnowledgeExtractor_CleanJSON(t *testing.T) {
	client := &stubLLM{reply: `{"knowledge": ["F = ma", "v = u + at"]}`}
	e := NewLLMKnowledgeExtractor(client)

	items, err := e.ExtractKnowledge(context.Background(), "projectile motion")
	require.NoError(t, err)
	assert.Equal(t, []string{"F = ma", "v = u + at"}, items)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "projectile motion")
}

func TestLLMKnowledgeExtractor_ProseReply(t *testing.T) {
	client := &stubLLM{reply: "Sure! Here are the relevant rules:\n" +
		"```json\n{\"knowledge\": [\"ohm's law: V = IR\"]}\n```\nHope that helps."}
	e := NewLLMKnowledgeExtractor(client)

	items, err := e.ExtractKnowledge(context.Background(), "circuits")
	require.NoError(t, err)
	assert.Equal(t, []string{"ohm's law: V = IR"}, items)
}

func TestLLMKnowledgeExtractor_EmptyAndBlankItems(t *testing.T) {
	client := &stubLLM{reply: `{"knowledge": ["  ", "", "gravity pulls down"]}`}
	e := NewLLMKnowledgeExtractor(client)

	items, err := e.ExtractKnowledge(context.Background(), "falling objects")
	require.NoError(t, err)
	assert.Equal(t, []string{"gravity pulls down"}, items)
}

func TestLLMKnowledgeExtractor_UnparseableReply(t *testing.T) {
	client := &stubLLM{reply: "I don't know anything about that."}
	e := NewLLMKnowledgeExtractor(client)

	items, err := e.ExtractKnowledge(context.Background(), "mystery")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLLMKnowledgeExtractor_ClientError(t *testing.T) {
	client := &stubLLM{err: errors.New("connection refused")}
	e := NewLLMKnowledgeExtractor(client)

	_, err := e.ExtractKnowledge(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, IsRetrievalError(err))

	var re *RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "llm", re.Retriever)
}

func TestRetrievalError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &RetrievalError{Retriever: "weaviate", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "weaviate")

	wrapped := fmt.Errorf("stage failed: %w", err)
	assert.True(t, IsRetrievalError(wrapped))
	assert.False(t, IsRetrievalError(errors.New("plain")))
}

func TestParseHits(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]any{
			KnowledgeClassName: []any{
				map[string]any{
					"content":     "water boils at 100C at sea level",
					"category":    "physics",
					"_additional": map[string]any{"certainty": 0.91},
				},
				map[string]any{
					// No content: dropped.
					"category":    "physics",
					"_additional": map[string]any{"certainty": 0.5},
				},
				map[string]any{
					"content": "pressure lowers the boiling point",
				},
			},
		},
	}

	hits := parseHits(data)
	require.Len(t, hits, 2)
	assert.Equal(t, "water boils at 100C at sea level", hits[0].Content)
	assert.Equal(t, "physics", hits[0].Category)
	assert.InDelta(t, 0.91, hits[0].Similarity, 1e-9)
	assert.Zero(t, hits[1].Similarity)
}

func TestParseHits_MalformedShapes(t *testing.T) {
	assert.Empty(t, parseHits(nil))
	assert.Empty(t, parseHits(map[string]models.JSONObject{"Get": "nope"}))
	assert.Empty(t, parseHits(map[string]models.JSONObject{
		"Get": map[string]any{KnowledgeClassName: "nope"},
	}))
}
