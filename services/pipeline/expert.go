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

	"github.com/AleutianAI/CausalForge/services/llm"
)

// Expert is the optional expert collaborator handle of a stage.
//
// It is an explicit two-state value, Unconfigured or Configured, so "skip
// this stage" is a visible branch rather than a nil check scattered through
// stage bodies. The zero value is Unconfigured.
type Expert struct {
	client llm.LLMClient
}

// NoExpert returns the Unconfigured handle.
func NoExpert() Expert { return Expert{} }

// WithExpert returns a Configured handle. A nil client yields Unconfigured.
func WithExpert(client llm.LLMClient) Expert {
	return Expert{client: client}
}

// Configured reports whether an expert is available.
func (e Expert) Configured() bool { return e.client != nil }

// Complete sends a prompt to the expert with deterministic sampling
// (temperature pinned to 0) so structural output stays reproducible.
func (e Expert) Complete(ctx context.Context, prompt string) (string, error) {
	if e.client == nil {
		return "", fmt.Errorf("no expert collaborator configured")
	}
	return e.client.Generate(ctx, prompt, llm.Deterministic())
}
