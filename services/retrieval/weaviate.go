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
	"fmt"
	"log/slog"
	"os"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var weaviateTracer = otel.Tracer("causalforge.retrieval.weaviate")

// KnowledgeClassName is the Weaviate class holding the domain knowledge
// corpus the similarity retriever searches.
const KnowledgeClassName = "CausalKnowledge"

// Compile-time interface implementation check.
var _ SimilarityRetriever = (*WeaviateRetriever)(nil)

// WeaviateRetriever implements similarity retrieval against a Weaviate
// instance populated by the ingestion path (ingest.go).
type WeaviateRetriever struct {
	client *weaviate.Client
}

// NewWeaviateClient builds a Weaviate client from WEAVIATE_HOST and
// WEAVIATE_SCHEME (defaults: "localhost:8080", "http").
func NewWeaviateClient() (*weaviate.Client, error) {
	host := os.Getenv("WEAVIATE_HOST")
	if host == "" {
		host = "localhost:8080"
	}
	scheme := os.Getenv("WEAVIATE_SCHEME")
	if scheme == "" {
		scheme = "http"
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	slog.Info("Initializing Weaviate client", "host", host, "scheme", scheme)
	return client, nil
}

// NewWeaviateRetriever wraps an existing Weaviate client.
func NewWeaviateRetriever(client *weaviate.Client) *WeaviateRetriever {
	return &WeaviateRetriever{client: client}
}

// EnsureSchema creates the CausalKnowledge class when it does not exist.
// Safe to call on every startup.
func (r *WeaviateRetriever) EnsureSchema(ctx context.Context) error {
	exists, err := r.client.Schema().ClassExistenceChecker().
		WithClassName(KnowledgeClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check class existence: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:       KnowledgeClassName,
		Description: "Domain knowledge snippets for causal DAG enhancement",
		Vectorizer:  "text2vec-transformers",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"},
				Description: "The knowledge snippet text"},
			{Name: "category", DataType: []string{"string"},
				Description: "Domain category (physics, finance, ...)"},
			{Name: "source", DataType: []string{"string"},
				Description: "Originating document"},
		},
	}
	if err := r.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", KnowledgeClassName, err)
	}
	slog.Info("Created Weaviate class", "class", KnowledgeClassName)
	return nil
}

// RetrieveBySimilarity runs a nearText query over the knowledge corpus and
// returns up to topK hits ranked by certainty.
func (r *WeaviateRetriever) RetrieveBySimilarity(ctx context.Context, query string,
	topK int) ([]Hit, error) {

	ctx, span := weaviateTracer.Start(ctx, "WeaviateRetriever.RetrieveBySimilarity")
	defer span.End()
	span.SetAttributes(
		attribute.String("retrieval.query", query),
		attribute.Int("retrieval.top_k", topK),
	)

	if topK <= 0 {
		topK = 3
	}

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "category"},
		{Name: "_additional { certainty }"},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(KnowledgeClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graphql query failed")
		return nil, &RetrievalError{Retriever: "weaviate", Err: err}
	}
	if len(result.Errors) > 0 {
		err := fmt.Errorf("graphql error: %s", result.Errors[0].Message)
		span.SetStatus(codes.Error, "graphql error")
		return nil, &RetrievalError{Retriever: "weaviate", Err: err}
	}

	hits := parseHits(result.Data)
	slog.Debug("Similarity retrieval complete", "query", query, "hits", len(hits))
	return hits, nil
}

// parseHits walks the GraphQL response shape
// Data -> "Get" -> KnowledgeClassName -> [objects].
func parseHits(data map[string]models.JSONObject) []Hit {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	objects, ok := get[KnowledgeClassName].([]any)
	if !ok {
		return nil
	}
	hits := make([]Hit, 0, len(objects))
	for _, raw := range objects {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		hit := Hit{}
		if s, ok := obj["content"].(string); ok {
			hit.Content = s
		}
		if s, ok := obj["category"].(string); ok {
			hit.Category = s
		}
		if add, ok := obj["_additional"].(map[string]any); ok {
			if c, ok := add["certainty"].(float64); ok {
				hit.Similarity = c
			}
		}
		if hit.Content == "" {
			continue
		}
		hits = append(hits, hit)
	}
	return hits
}
