// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/CausalForge/services/pipeline"
)

// RenderPipelineReport formats a pipeline report for the terminal.
//
// When styled is false (piped output, --machine), the same content is
// emitted as plain text with no ANSI sequences.
func RenderPipelineReport(report *pipeline.PipelineReport, styled bool) string {
	var sb strings.Builder

	title := fmt.Sprintf("Refinement run %s", report.RunID)
	if styled {
		sb.WriteString(Styles.Title.Render(title))
	} else {
		sb.WriteString(title)
	}
	sb.WriteByte('\n')

	for _, sr := range report.Stages {
		sb.WriteString(renderStageLine(sr, styled))
		sb.WriteByte('\n')
	}

	summary := fmt.Sprintf(
		"nodes=%d edges=%d is_dag=%t is_connected=%t\nissues=%d corrections=%d knowledge=%d patterns=%d\nquality score: %.2f",
		report.Structure.NodeCount, report.Structure.EdgeCount,
		report.Structure.IsDAG, report.Structure.IsConnected,
		report.TotalIssues, report.TotalCorrections,
		report.TotalKnowledge, report.TotalPatterns,
		report.QualityScore,
	)
	if styled {
		sb.WriteString(Styles.Box.Render(summary))
	} else {
		sb.WriteString(summary)
	}
	sb.WriteByte('\n')
	return sb.String()
}

func renderStageLine(sr pipeline.StageReport, styled bool) string {
	detail := ""
	switch {
	case sr.Error != "":
		detail = sr.Error
	case sr.ValidationFailure != "":
		detail = sr.ValidationFailure
	case sr.Reason != "":
		detail = sr.Reason
	case sr.DAGModified:
		detail = "dag updated"
	}
	line := fmt.Sprintf("  %-13s %-18s %s", sr.Stage, sr.Status, detail)
	if !styled {
		return line
	}
	switch sr.Status {
	case pipeline.StatusFailed, pipeline.StatusValidationFailed:
		return Styles.Error.Render(line)
	case pipeline.StatusSkipped:
		return Styles.Muted.Render(line)
	default:
		return Styles.Success.Render(line)
	}
}
