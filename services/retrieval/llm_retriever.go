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
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/CausalForge/pkg/extract"
	"github.com/AleutianAI/CausalForge/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var llmRetrieverTracer = otel.Tracer("causalforge.retrieval.llm")

// Compile-time interface implementation check.
var _ KnowledgeExtractor = (*LLMKnowledgeExtractor)(nil)

const knowledgePrompt = `You are a domain knowledge assistant.
List the physical laws, formulas, or domain rules relevant to the query below.
Reply with a JSON object of the form {"knowledge": ["rule 1", "rule 2", ...]}.
Return an empty list if nothing applies.

Query: %s`

// LLMKnowledgeExtractor implements the generative retrieval collaborator on
// top of any LLMClient. The reply is free-form text run through the
// response extractor, so a rambling model still yields a usable list.
type LLMKnowledgeExtractor struct {
	client llm.LLMClient
}

// NewLLMKnowledgeExtractor wraps an LLM client as a KnowledgeExtractor.
func NewLLMKnowledgeExtractor(client llm.LLMClient) *LLMKnowledgeExtractor {
	return &LLMKnowledgeExtractor{client: client}
}

// ExtractKnowledge asks the LLM for knowledge snippets matching the query.
//
// Calls run at temperature 0 like every other structural call in the
// pipeline. Snippets that are empty after trimming are dropped.
func (e *LLMKnowledgeExtractor) ExtractKnowledge(ctx context.Context, query string) ([]string, error) {
	ctx, span := llmRetrieverTracer.Start(ctx, "LLMKnowledgeExtractor.ExtractKnowledge")
	defer span.End()

	reply, err := e.client.Generate(ctx, fmt.Sprintf(knowledgePrompt, query), llm.Deterministic())
	if err != nil {
		span.RecordError(err)
		return nil, &RetrievalError{Retriever: "llm", Err: err}
	}

	res := extract.Extract(reply, extract.Options{
		Required:      map[string]any{"knowledge": []any{}},
		Discriminator: "knowledge",
	})
	raw, _ := res["knowledge"].([]any)
	items := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprintf("%v", v)
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		items = append(items, strings.TrimSpace(s))
	}
	span.SetAttributes(attribute.Int("retrieval.items", len(items)))
	slog.Debug("LLM knowledge extraction complete", "items", len(items))
	return items, nil
}
