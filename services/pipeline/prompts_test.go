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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
}

func TestLoadTemplatesEmptyDirKeepsDefaults(t *testing.T) {
	tmpl, err := LoadTemplates(t.TempDir())
	require.NoError(t, err)

	prompt, err := tmpl.Review("solve for v", testDAG())
	require.NoError(t, err)
	assert.Contains(t, prompt, "solve for v")
	assert.Contains(t, prompt, `"target_variable"`)
}

func TestLoadTemplatesMissingDirKeepsDefaults(t *testing.T) {
	tmpl, err := LoadTemplates(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)

	prompt, err := tmpl.Gaps("solve for v", testDAG())
	require.NoError(t, err)
	assert.Contains(t, prompt, "knowledge_gaps")
}

func TestLoadTemplatesOverridesSingleTemplate(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "review.tmpl", "REVIEW {{.problem}}")
	// Files outside the known template names are never parsed.
	writeTemplate(t, dir, "notes.tmpl", "{{.unclosed")

	tmpl, err := LoadTemplates(dir)
	require.NoError(t, err)

	review, err := tmpl.Review("solve for v", testDAG())
	require.NoError(t, err)
	assert.Equal(t, "REVIEW solve for v", review)

	// The other prompts keep their embedded defaults.
	gaps, err := tmpl.Gaps("solve for v", testDAG())
	require.NoError(t, err)
	assert.Contains(t, gaps, "knowledge_gaps")
}

func TestLoadTemplatesMalformedOverrideIsAnError(t *testing.T) {
	tests := []struct {
		file string
		text string
	}{
		{"gaps.tmpl", "{{.problem"},
		{"optimize.tmpl", "{{range}}"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			dir := t.TempDir()
			writeTemplate(t, dir, tt.file, tt.text)

			_, err := LoadTemplates(dir)
			require.Error(t, err)
			assert.ErrorContains(t, err, "parse template")
		})
	}
}
