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
	"fmt"
	"log"

	"github.com/AleutianAI/CausalForge/services/retrieval"
	"github.com/spf13/cobra"
)

// runIngest loads knowledge documents into the Weaviate corpus backing the
// similarity retriever.
func runIngest(cmd *cobra.Command, args []string) {
	client, err := retrieval.NewWeaviateClient()
	if err != nil {
		log.Fatalf("Error connecting to Weaviate: %v", err)
	}

	ctx := context.Background()
	if err := retrieval.NewWeaviateRetriever(client).EnsureSchema(ctx); err != nil {
		log.Fatalf("Error ensuring knowledge schema: %v", err)
	}

	ingestor := retrieval.NewIngestor(client)
	total := 0
	for _, path := range args {
		count, err := ingestor.IngestFile(ctx, path, ingestCategory)
		if err != nil {
			log.Fatalf("Error ingesting %s: %v", path, err)
		}
		total += count
	}
	fmt.Printf("Ingested %d chunks from %d documents into %s\n",
		total, len(args), retrieval.KnowledgeClassName)
}
