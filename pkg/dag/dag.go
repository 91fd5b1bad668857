// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dag defines the causal diagram data model shared by every
// refinement stage, plus the schema validator and graph builder that
// operate on it.
//
// The central artifact is the DAG: a description of how a problem's known
// quantities lead, through justified causal links and an ordered
// computation plan, to a target quantity. Stages never mutate a DAG in
// place; they either return the value they received or a wholly new,
// validated replacement.
//
// # Contents
//
//   - DAG, CausalLink, ComputationStep, KnowledgeItem: the typed model
//   - Validate / ValidateDetailed (validator.go): the structural gate every
//     candidate replacement must pass before it may overwrite the current DAG
//   - Build (graph.go): causal_graph to directed multigraph conversion for
//     reporting (node/edge counts, acyclicity, connectivity)
//
// # Thread Safety
//
// All functions in this package are pure; values are safe to share as long
// as callers follow the copy-on-write discipline above.
package dag

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Model
// =============================================================================

// DAG is the causal diagram under refinement.
//
// The four required fields mirror the wire contract enforced by Validate:
// target_variable, knowns, causal_graph, computation_plan. KnowledgeBase is
// optional and only populated by the enhancement stage's metadata fallback.
//
// Extra preserves collaborator-added fields we do not model, so a DAG that
// round-trips through the pipeline does not silently lose them.
type DAG struct {
	// TargetVariable is the quantity the computation plan solves for.
	// Required, non-empty.
	TargetVariable string `json:"target_variable"`

	// Knowns maps variable identifiers to their known values or
	// expressions. Insertion order is irrelevant.
	Knowns map[string]any `json:"knowns"`

	// CausalGraph is the ordered list of causal links. Order is preserved
	// for display but carries no validity semantics.
	CausalGraph []CausalLink `json:"causal_graph"`

	// ComputationPlan is the ordered list of computation steps. Order IS
	// meaningful (later steps may consume earlier outputs), but plan/graph
	// topological consistency is not verified here.
	ComputationPlan []ComputationStep `json:"computation_plan"`

	// KnowledgeBase holds retrieved knowledge appended as inert metadata
	// when structural injection was unavailable.
	KnowledgeBase []KnowledgeItem `json:"knowledge_base,omitempty"`

	// Extra is the forward-compatibility side-bag for top-level fields
	// this model does not know about.
	Extra map[string]json.RawMessage `json:"-"`
}

// CausalLink is one edge (or multi-edge) in the causal graph.
type CausalLink struct {
	// Cause is a single variable identifier or an ordered list of
	// identifiers converging on one effect.
	Cause CauseRef `json:"cause"`

	// Effect is the single variable identifier this link produces.
	Effect string `json:"effect"`

	// Rule is the free-text causal law or formula justifying the link.
	// May be empty; callers treat empty/short rule text as a knowledge gap.
	Rule string `json:"rule"`
}

// ComputationStep is one executable step in the plan. The pipeline never
// executes steps, it only validates their shape.
type ComputationStep struct {
	ID          string   `json:"id"`
	Target      string   `json:"target"`
	Inputs      []string `json:"inputs"`
	Description string   `json:"description,omitempty"`
}

// KnowledgeItem is one retrieved knowledge snippet attached to the DAG as
// metadata by the enhancement stage fallback.
type KnowledgeItem struct {
	Content string `json:"content"`
	// Source identifies which retriever produced the item
	// ("llm" or "vector").
	Source     string  `json:"source,omitempty"`
	Category   string  `json:"category,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// =============================================================================
// CauseRef: string-or-list JSON field
// =============================================================================

// CauseRef models the causal_graph "cause" field, which collaborators emit
// either as a single identifier or as a list of identifiers.
//
// The zero value is an empty reference. Values round-trip in the form they
// were parsed from: a single cause marshals back to a JSON string, multiple
// causes to a JSON array.
type CauseRef struct {
	ids    []string
	single bool
}

// NewCause builds a single-identifier reference.
func NewCause(id string) CauseRef {
	return CauseRef{ids: []string{id}, single: true}
}

// NewCauses builds a multi-identifier reference.
func NewCauses(ids ...string) CauseRef {
	out := make([]string, len(ids))
	copy(out, ids)
	return CauseRef{ids: out}
}

// IDs returns the ordered cause identifiers. The returned slice is a copy.
func (c CauseRef) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// IsMulti reports whether the reference was supplied as a list.
func (c CauseRef) IsMulti() bool { return !c.single }

// String renders the reference for logs and error messages.
func (c CauseRef) String() string {
	if c.single && len(c.ids) == 1 {
		return c.ids[0]
	}
	return fmt.Sprintf("%v", c.ids)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
// Non-string array elements are stringified rather than rejected; structural
// policing belongs to the validator, not the decoder.
func (c *CauseRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = NewCause(s)
		return nil
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cause must be a string or array of strings: %w", err)
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if sv, ok := v.(string); ok {
			ids = append(ids, sv)
		} else {
			ids = append(ids, fmt.Sprintf("%v", v))
		}
	}
	*c = CauseRef{ids: ids}
	return nil
}

// MarshalJSON writes a string for single causes and an array otherwise.
func (c CauseRef) MarshalJSON() ([]byte, error) {
	if c.single && len(c.ids) == 1 {
		return json.Marshal(c.ids[0])
	}
	return json.Marshal(c.ids)
}

// =============================================================================
// Construction and copying
// =============================================================================

// Decode converts an untyped candidate (as produced by the response
// extractor) into a typed DAG.
//
// Decode assumes the candidate already passed Validate; it still returns an
// error rather than panicking if handed malformed input, since the two calls
// happen on opposite sides of a trust boundary. Unknown top-level fields are
// preserved in Extra.
func Decode(candidate any) (*DAG, error) {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("encode candidate: %w", err)
	}
	return DecodeJSON(raw)
}

// DecodeJSON parses a DAG from its JSON wire form, keeping unknown
// top-level fields in Extra.
func DecodeJSON(raw []byte) (*DAG, error) {
	var d DAG
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode dag: %w", err)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("decode dag fields: %w", err)
	}
	for _, known := range []string{
		"target_variable", "knowns", "causal_graph", "computation_plan", "knowledge_base",
	} {
		delete(all, known)
	}
	if len(all) > 0 {
		d.Extra = all
	}
	if d.Knowns == nil {
		d.Knowns = map[string]any{}
	}
	return &d, nil
}

// MarshalJSON emits the wire form, folding Extra back into the top level.
func (d *DAG) MarshalJSON() ([]byte, error) {
	type alias DAG // avoid recursion
	raw, err := json.Marshal((*alias)(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return raw, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy. Stages clone before any local bookkeeping so
// the caller's value is never aliased.
func (d *DAG) Clone() *DAG {
	if d == nil {
		return nil
	}
	out := &DAG{
		TargetVariable:  d.TargetVariable,
		Knowns:          make(map[string]any, len(d.Knowns)),
		CausalGraph:     make([]CausalLink, len(d.CausalGraph)),
		ComputationPlan: make([]ComputationStep, len(d.ComputationPlan)),
	}
	for k, v := range d.Knowns {
		out.Knowns[k] = v
	}
	for i, l := range d.CausalGraph {
		out.CausalGraph[i] = CausalLink{Cause: CauseRef{ids: l.Cause.IDs(), single: l.Cause.single}, Effect: l.Effect, Rule: l.Rule}
	}
	copy(out.ComputationPlan, d.ComputationPlan)
	for i := range out.ComputationPlan {
		inputs := make([]string, len(d.ComputationPlan[i].Inputs))
		copy(inputs, d.ComputationPlan[i].Inputs)
		out.ComputationPlan[i].Inputs = inputs
	}
	if d.KnowledgeBase != nil {
		out.KnowledgeBase = make([]KnowledgeItem, len(d.KnowledgeBase))
		copy(out.KnowledgeBase, d.KnowledgeBase)
	}
	if d.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			cp := make(json.RawMessage, len(v))
			copy(cp, v)
			out.Extra[k] = cp
		}
	}
	return out
}
