// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the expert collaborator clients used by the
// refinement stages. Every backend implements LLMClient; the pipeline only
// sees the interface.
package llm

import "context"

// GenerationParams are sampling controls passed to any backend. Nil fields
// mean "backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Deterministic returns params pinned to temperature 0. The stages always
// call experts this way so structural output stays reproducible.
func Deterministic() GenerationParams {
	zero := float32(0)
	return GenerationParams{Temperature: &zero}
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
