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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/AleutianAI/CausalForge/pkg/dag"
)

// Template names; LoadTemplates looks for "<name>.tmpl" in the override
// directory.
const (
	tmplReview    = "review"
	tmplGaps      = "gaps"
	tmplInjection = "injection"
	tmplOptimize  = "optimize"
)

// Placeholders available to every template: problem, dag, knowledge_rules,
// knowledge_gaps. Structures are substituted as UTF-8 JSON.
var defaultTemplateText = map[string]string{
	tmplReview: `You are reviewing a causal diagram for the problem below.

Problem:
{{.problem}}

Causal DAG (JSON):
{{.dag}}

Check the DAG for wrong causal directions, missing variables, and
inconsistent computation steps. Reply with a single JSON object:
{
  "problem_domain": "<short domain label>",
  "issues": [{"node": "...", "description": "..."}],
  "corrections": [{"description": "..."}],
  "corrected_dag": { ...full DAG with target_variable, knowns, causal_graph, computation_plan... }
}
Omit "corrected_dag" only if no change is needed.`,

	tmplGaps: `You are auditing a causal diagram for missing domain justification.

Problem:
{{.problem}}

Causal DAG (JSON):
{{.dag}}

A knowledge gap is a causal link whose rule is absent, vague, or does not
justify the edge. Reply with a single JSON object:
{
  "knowledge_gaps": [{"type": "missing_rule", "link_index": 0, "effect": "...", "detail": "..."}]
}`,

	tmplInjection: `You are enhancing a causal diagram with retrieved domain knowledge.

Problem:
{{.problem}}

Causal DAG (JSON):
{{.dag}}

Retrieved knowledge (JSON):
{{.knowledge_rules}}

Identified gaps (JSON):
{{.knowledge_gaps}}

Decide how each knowledge item fills a gap and apply the edits yourself:
update rules, add knowns, or extend the computation plan. Reply with a
single JSON object:
{
  "applied": [{"description": "..."}],
  "enhanced_dag": { ...full DAG with target_variable, knowns, causal_graph, computation_plan... }
}`,

	tmplOptimize: `You are optimizing the structure of a causal diagram.

Problem:
{{.problem}}

Causal DAG (JSON):
{{.dag}}

Classify the causal patterns present (chains A->B->C, forks A->B plus A->C,
colliders A->C plus B->C), flag structural issues (redundant edges,
disconnected variables, cycles), and simplify where safe. Reply with a
single JSON object:
{
  "patterns": {"chains": 0, "forks": 0, "colliders": 0},
  "structural_issues": [{"description": "..."}],
  "modifications": [{"description": "..."}],
  "optimized_dag": { ...full DAG with target_variable, knowns, causal_graph, computation_plan... }
}
Omit "optimized_dag" only if no change is needed.`,
}

// Templates holds the parsed prompt templates for the three stages.
// Template source is a config concern; DefaultTemplates embeds working
// defaults and LoadTemplates lets deployments override individual prompts.
type Templates struct {
	parsed map[string]*template.Template
}

// DefaultTemplates returns the embedded prompt set.
func DefaultTemplates() *Templates {
	t := &Templates{parsed: make(map[string]*template.Template, len(defaultTemplateText))}
	for name, text := range defaultTemplateText {
		t.parsed[name] = template.Must(template.New(name).Parse(text))
	}
	return t
}

// LoadTemplates returns the default set with any "<name>.tmpl" file found
// in dir parsed as an override. Unknown files are ignored; a malformed
// override is an error rather than a silent fallback.
func LoadTemplates(dir string) (*Templates, error) {
	t := DefaultTemplates()
	for name := range defaultTemplateText {
		path := filepath.Join(dir, name+".tmpl")
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", path, err)
		}
		parsed, err := template.New(name).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", path, err)
		}
		t.parsed[name] = parsed
	}
	return t, nil
}

// render executes the named template with the placeholder map.
func (t *Templates) render(name string, data map[string]string) (string, error) {
	tmpl, ok := t.parsed[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}
	return sb.String(), nil
}

// Review renders the review-stage prompt.
func (t *Templates) Review(problem string, d *dag.DAG) (string, error) {
	return t.render(tmplReview, map[string]string{
		"problem": problem,
		"dag":     dagJSON(d),
	})
}

// Gaps renders the gap-identification prompt.
func (t *Templates) Gaps(problem string, d *dag.DAG) (string, error) {
	return t.render(tmplGaps, map[string]string{
		"problem": problem,
		"dag":     dagJSON(d),
	})
}

// Injection renders the knowledge-injection prompt.
func (t *Templates) Injection(problem string, d *dag.DAG, knowledge []dag.KnowledgeItem, gaps []Gap) (string, error) {
	return t.render(tmplInjection, map[string]string{
		"problem":         problem,
		"dag":             dagJSON(d),
		"knowledge_rules": asJSON(knowledge),
		"knowledge_gaps":  asJSON(gaps),
	})
}

// Optimize renders the optimization-stage prompt.
func (t *Templates) Optimize(problem string, d *dag.DAG) (string, error) {
	return t.render(tmplOptimize, map[string]string{
		"problem": problem,
		"dag":     dagJSON(d),
	})
}

func dagJSON(d *dag.DAG) string {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func asJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
