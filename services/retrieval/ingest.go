// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	chunkSize    = 1000
	chunkOverlap = chunkSize / 10
)

// Ingestor loads knowledge documents into the CausalKnowledge corpus so
// the similarity retriever has something to search.
type Ingestor struct {
	client *weaviate.Client
}

// NewIngestor wraps a Weaviate client.
func NewIngestor(client *weaviate.Client) *Ingestor {
	return &Ingestor{client: client}
}

// IngestFile splits one document into overlapping chunks and batch-imports
// them. Chunk IDs are derived from a content hash, so re-ingesting the same
// file upserts instead of duplicating.
//
// Returns the number of chunks imported.
func (in *Ingestor) IngestFile(ctx context.Context, path, category string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	source := filepath.Base(path)

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	chunks, err := splitter.SplitText(string(raw))
	if err != nil {
		return 0, fmt.Errorf("split %s: %w", source, err)
	}
	if len(chunks) == 0 {
		slog.Warn("No chunks produced after splitting", "source", source)
		return 0, nil
	}
	slog.Info("Split document into chunks", "source", source, "chunk_count", len(chunks))

	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		hash := sha256.Sum256([]byte(chunk))
		docUUID, _ := uuid.FromBytes(hash[:16])
		objects[i] = &models.Object{
			Class: KnowledgeClassName,
			ID:    strfmt.UUID(docUUID.String()),
			Properties: map[string]interface{}{
				"content":  chunk,
				"category": category,
				"source":   fmt.Sprintf("%s_part_%d", source, i+1),
			},
		}
	}

	resp, err := in.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		slog.Error("Failed to batch import knowledge", "source", source, "error", err)
		return 0, fmt.Errorf("batch import to weaviate: %w", err)
	}

	created := 0
	for _, obj := range resp {
		if obj.Result == nil || obj.Result.Errors == nil {
			created++
			continue
		}
		for _, e := range obj.Result.Errors.Error {
			if e != nil {
				slog.Error("Chunk import failed", "source", source, "error", e.Message)
			}
		}
	}
	slog.Info("Knowledge ingestion complete", "source", source, "chunks_created", created)
	return created, nil
}
