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

import "fmt"

// requiredTopLevelKeys are the fields every stage-produced DAG must carry.
var requiredTopLevelKeys = []string{
	"target_variable", "knowns", "causal_graph", "computation_plan",
}

// linkKeys are required on every causal_graph element.
var linkKeys = []string{"cause", "effect", "rule"}

// stepKeys are required on every computation_plan element.
var stepKeys = []string{"id", "target", "inputs"}

// ValidationResult carries the outcome of ValidateDetailed.
//
// Failure is a human-readable path to the first structural deviation
// (for example "causal_graph[2]: missing key \"rule\""). It is diagnostic
// only; acceptance decisions key off Valid.
type ValidationResult struct {
	Valid   bool
	Failure string
}

// Validate reports whether a candidate replacement DAG satisfies the
// structural contract.
//
// # Description
//
// Applied to candidates proposed by a collaborator before they may
// overwrite the current DAG; the original input DAG is trusted and never
// re-validated. Validate never panics: any value that is not a mapping with
// the required shape simply yields false. Checks run in order and
// short-circuit on the first failure:
//
//  1. All of target_variable, knowns, causal_graph, computation_plan present.
//  2. causal_graph is a sequence whose every element is a mapping with
//     cause, effect, and rule.
//  3. computation_plan is a sequence whose every element is a mapping with
//     id, target, and inputs.
//
// Acyclicity and connectivity are deliberately NOT gated here; they are
// reported as graph metadata only.
//
// # Inputs
//
//   - candidate: any decoded JSON value (typically map[string]any from the
//     response extractor).
//
// # Outputs
//
//   - bool: true iff the candidate may replace the current DAG.
func Validate(candidate any) bool {
	return ValidateDetailed(candidate).Valid
}

// ValidateDetailed runs the same checks as Validate and additionally
// records which field or element failed, for report diagnostics.
func ValidateDetailed(candidate any) ValidationResult {
	m, ok := candidate.(map[string]any)
	if !ok {
		return fail("candidate is not a mapping")
	}
	for _, key := range requiredTopLevelKeys {
		if _, present := m[key]; !present {
			return fail("missing key %q", key)
		}
	}
	if r := validateElementSeq(m["causal_graph"], "causal_graph", linkKeys); !r.Valid {
		return r
	}
	if r := validateElementSeq(m["computation_plan"], "computation_plan", stepKeys); !r.Valid {
		return r
	}
	return ValidationResult{Valid: true}
}

// validateElementSeq checks that value is a sequence of mappings each
// containing every key in required.
func validateElementSeq(value any, field string, required []string) ValidationResult {
	seq, ok := value.([]any)
	if !ok {
		return fail("%s is not a sequence", field)
	}
	for i, elem := range seq {
		em, ok := elem.(map[string]any)
		if !ok {
			return fail("%s[%d] is not a mapping", field, i)
		}
		for _, key := range required {
			if _, present := em[key]; !present {
				return fail("%s[%d]: missing key %q", field, i, key)
			}
		}
	}
	return ValidationResult{Valid: true}
}

func fail(format string, args ...any) ValidationResult {
	return ValidationResult{Failure: fmt.Sprintf(format, args...)}
}
