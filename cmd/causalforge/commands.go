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
	"log"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath     string
	problemText    string
	problemFile    string
	skipStages     []string
	outputPath     string
	machineOutput  bool
	ingestCategory string

	config Config

	rootCmd = &cobra.Command{
		Use:   "causalforge",
		Short: "A cli to refine causal DAGs through expert review, knowledge enhancement, and structure optimization",
		Long: `CausalForge takes a causal diagram describing how a problem's known
quantities lead to a target quantity and refines it through three
collaborator-backed stages: review, enhancement, optimization.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			config, err = loadConfig(configPath)
			if err != nil {
				log.Fatalf("Error loading configuration: %v", err)
			}
		},
	}

	refineCmd = &cobra.Command{
		Use:   "refine [dag.json]",
		Short: "Run the full three-stage refinement pipeline on a DAG file",
		Args:  cobra.ExactArgs(1),
		Run:   runRefine,
	}

	validateCmd = &cobra.Command{
		Use:   "validate [dag.json]",
		Short: "Check a DAG file against the structural schema",
		Args:  cobra.ExactArgs(1),
		Run:   runValidate,
	}

	ingestCmd = &cobra.Command{
		Use:     "ingest [path...]",
		Short:   "Ingest knowledge documents into the retrieval corpus",
		Aliases: []string{"i"},
		Args:    cobra.MinimumNArgs(1),
		Run:     runIngest,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the refinement HTTP API",
		Run:   runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Path to the configuration file")

	refineCmd.Flags().StringVarP(&problemText, "problem", "p", "",
		"Problem description text")
	refineCmd.Flags().StringVar(&problemFile, "problem-file", "",
		"Read the problem description from a file")
	refineCmd.Flags().StringSliceVar(&skipStages, "skip", nil,
		"Stages to skip: expert, rag, structure")
	refineCmd.Flags().StringVarP(&outputPath, "output", "o", "",
		"Write the refined DAG to a file instead of stdout")
	refineCmd.Flags().BoolVar(&machineOutput, "machine", false,
		"Emit the full JSON response instead of the styled report")

	ingestCmd.Flags().StringVar(&ingestCategory, "category", "general",
		"Domain category label for the ingested documents")

	rootCmd.AddCommand(refineCmd, validateCmd, ingestCmd, serveCmd)
}
