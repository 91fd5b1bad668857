// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/AleutianAI/CausalForge/pkg/dag"
	"github.com/AleutianAI/CausalForge/pkg/ux"
	"github.com/AleutianAI/CausalForge/services/pipeline"
	"github.com/spf13/cobra"
)

// runRefine loads a DAG file, runs the pipeline, and prints the report.
func runRefine(cmd *cobra.Command, args []string) {
	d := loadDAGFile(args[0])

	problem := problemText
	if problemFile != "" {
		raw, err := os.ReadFile(problemFile)
		if err != nil {
			log.Fatalf("Error reading problem file: %v", err)
		}
		problem = strings.TrimSpace(string(raw))
	}
	if problem == "" {
		log.Fatalf("A problem description is required (--problem or --problem-file)")
	}

	p, err := buildPipeline(config)
	if err != nil {
		log.Fatalf("Error building pipeline: %v", err)
	}

	final, report := p.Run(context.Background(), d, problem, pipeline.ParseSkips(skipStages))

	if machineOutput {
		out, err := json.MarshalIndent(map[string]any{"dag": final, "report": report}, "", "  ")
		if err != nil {
			log.Fatalf("Error encoding response: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Print(ux.RenderPipelineReport(report, ux.IsTerminal()))

	if outputPath != "" {
		raw, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			log.Fatalf("Error encoding refined DAG: %v", err)
		}
		if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
			log.Fatalf("Error writing %s: %v", outputPath, err)
		}
		fmt.Printf("Refined DAG written to %s\n", outputPath)
	}
}

// runValidate checks one DAG file against the structural schema and exits
// non-zero on failure, for use in scripts.
func runValidate(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Error reading %s: %v", args[0], err)
	}
	var candidate any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		log.Fatalf("%s is not valid JSON: %v", args[0], err)
	}
	result := dag.ValidateDetailed(candidate)
	if !result.Valid {
		fmt.Printf("invalid: %s\n", result.Failure)
		os.Exit(1)
	}
	fmt.Println("valid")
}

func loadDAGFile(path string) *dag.DAG {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Error reading %s: %v", path, err)
	}
	d, err := dag.DecodeJSON(raw)
	if err != nil {
		log.Fatalf("Error decoding %s: %v", path, err)
	}
	return d
}
