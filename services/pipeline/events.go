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

import "log/slog"

// EventSink receives progress events as the pipeline runs. Emission is a
// side concern decoupled from control flow; sinks must not block and must
// not panic.
type EventSink interface {
	StageStarted(stage string)
	StageCompleted(report StageReport)
}

// SlogSink logs stage events through slog. The zero value uses the default
// logger.
type SlogSink struct {
	Logger *slog.Logger
}

var _ EventSink = (*SlogSink)(nil)

func (s *SlogSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// StageStarted logs the stage entry at debug level.
func (s *SlogSink) StageStarted(stage string) {
	s.logger().Debug("Stage started", "stage", stage)
}

// StageCompleted logs the outcome; failures log at warn.
func (s *SlogSink) StageCompleted(report StageReport) {
	l := s.logger()
	switch report.Status {
	case StatusFailed, StatusValidationFailed:
		l.Warn("Stage completed",
			"stage", report.Stage,
			"status", string(report.Status),
			"error", report.Error,
			"validation_failure", report.ValidationFailure)
	default:
		l.Info("Stage completed",
			"stage", report.Stage,
			"status", string(report.Status),
			"dag_modified", report.DAGModified,
			"issues", len(report.Issues))
	}
}

// NopSink discards all events.
type NopSink struct{}

var _ EventSink = (*NopSink)(nil)

func (NopSink) StageStarted(string)        {}
func (NopSink) StageCompleted(StageReport) {}
