// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the refinement pipeline over HTTP.
//
// Handlers are thin: request decoding and status mapping only. All
// refinement logic lives in services/pipeline; the worst a collaborator
// failure produces is a 200 with the input DAG and a report saying why
// nothing changed.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/AleutianAI/CausalForge/pkg/dag"
	"github.com/AleutianAI/CausalForge/services/pipeline"
	"github.com/gin-gonic/gin"
)

// RefineRequest is the body for POST /v1/pipeline/refine and the
// single-stage endpoints.
type RefineRequest struct {
	// DAG is the input diagram. Trusted as-is per the pipeline contract;
	// only JSON well-formedness is checked here.
	DAG json.RawMessage `json:"dag" binding:"required"`

	// Problem is the natural-language problem description.
	Problem string `json:"problem" binding:"required"`

	// SkipStages optionally names stages to skip:
	// "expert", "rag", "structure".
	SkipStages []string `json:"skip_stages"`
}

// RefineResponse pairs the resulting DAG with the aggregate report.
type RefineResponse struct {
	DAG    *dag.DAG                 `json:"dag"`
	Report *pipeline.PipelineReport `json:"report"`
}

// StageResponse pairs the resulting DAG with a single stage report.
type StageResponse struct {
	DAG    *dag.DAG             `json:"dag"`
	Report pipeline.StageReport `json:"report"`
}

// ValidateRequest is the body for POST /v1/dag/validate.
type ValidateRequest struct {
	DAG json.RawMessage `json:"dag" binding:"required"`
}

// ValidateResponse reports the validator's verdict and diagnostic.
type ValidateResponse struct {
	Valid   bool   `json:"valid"`
	Failure string `json:"failure,omitempty"`
}

// HandleRefine runs the full pipeline on the posted DAG.
func HandleRefine(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, d, ok := decodeRefineRequest(c)
		if !ok {
			return
		}
		final, report := p.Run(c.Request.Context(), d, req.Problem,
			pipeline.ParseSkips(req.SkipStages))
		c.JSON(http.StatusOK, RefineResponse{DAG: final, Report: report})
	}
}

// HandleStage runs one named stage directly. The :stage parameter is one
// of "review", "enhancement", "optimization".
func HandleStage(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, d, ok := decodeRefineRequest(c)
		if !ok {
			return
		}
		var (
			out    *dag.DAG
			report pipeline.StageReport
		)
		switch c.Param("stage") {
		case pipeline.StageReview:
			out, report = p.Review(c.Request.Context(), d, req.Problem)
		case pipeline.StageEnhancement:
			out, report = p.Enhance(c.Request.Context(), d, req.Problem)
		case pipeline.StageOptimization:
			out, report = p.Optimize(c.Request.Context(), d, req.Problem)
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown stage " + c.Param("stage")})
			return
		}
		c.JSON(http.StatusOK, StageResponse{DAG: out, Report: report})
	}
}

// HandleValidate runs the schema validator on a candidate DAG.
func HandleValidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ValidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var candidate any
		if err := json.Unmarshal(req.DAG, &candidate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dag is not valid JSON"})
			return
		}
		result := dag.ValidateDetailed(candidate)
		c.JSON(http.StatusOK, ValidateResponse{Valid: result.Valid, Failure: result.Failure})
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// decodeRefineRequest binds the shared request body and decodes the DAG.
// Writes the error response itself; callers bail out when ok is false.
func decodeRefineRequest(c *gin.Context) (RefineRequest, *dag.DAG, bool) {
	var req RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, nil, false
	}
	d, err := dag.DecodeJSON(req.DAG)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dag is not valid JSON: " + err.Error()})
		return req, nil, false
	}
	return req, d, true
}
