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
	"github.com/AleutianAI/CausalForge/pkg/dag"
)

// acceptCandidate runs the schema validator on a collaborator-proposed
// replacement DAG and decodes it into the typed model.
//
// Returns (nil, diagnostic) when the candidate must be discarded; the
// caller then keeps its input DAG unchanged. Decode failures after a
// passing validation are treated the same way, since the candidate crossed
// a trust boundary either way.
func acceptCandidate(candidate any) (*dag.DAG, string) {
	result := dag.ValidateDetailed(candidate)
	if !result.Valid {
		return nil, result.Failure
	}
	decoded, err := dag.Decode(candidate)
	if err != nil {
		return nil, "decode: " + err.Error()
	}
	return decoded, ""
}

// anyList coerces an extracted value to a list, defaulting to empty.
// Extraction guarantees required list keys exist, but a collaborator may
// still have emitted a scalar where a list belongs.
func anyList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	if v == nil {
		return []any{}
	}
	return []any{v}
}

// intFromAny reads a numeric field from extracted JSON, where numbers
// arrive as float64. Arrays count by length, so a collaborator returning
// the pattern instances instead of a tally still reports correctly.
func intFromAny(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case []any:
		return len(n)
	default:
		return 0
	}
}
