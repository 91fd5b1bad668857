// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval provides the two knowledge-retrieval collaborators the
// enhancement stage consults: a generative extractor backed by an LLM and a
// similarity retriever backed by Weaviate, plus the ingestion path that
// keeps the Weaviate corpus populated.
//
// The stage tries the generative extractor first and only consults the
// similarity retriever when fewer than three items were already retrieved.
// Both collaborators are optional; a stage with neither configured reports
// no_retrieval and leaves the DAG untouched.
package retrieval

import (
	"context"
	"errors"
	"fmt"
)

// KnowledgeExtractor is the generative retrieval collaborator: it asks an
// LLM to produce domain knowledge snippets for a query.
type KnowledgeExtractor interface {
	// ExtractKnowledge returns zero or more knowledge snippets for the
	// query. An empty slice is a normal outcome, not an error.
	ExtractKnowledge(ctx context.Context, query string) ([]string, error)
}

// Hit is one similarity-search result.
type Hit struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Category   string  `json:"category"`
}

// SimilarityRetriever is the vector-search retrieval collaborator.
type SimilarityRetriever interface {
	// RetrieveBySimilarity returns up to topK hits ranked by similarity.
	RetrieveBySimilarity(ctx context.Context, query string, topK int) ([]Hit, error)
}

// RetrievalError wraps a collaborator failure with the collaborator's name
// so reports can say which retriever fell over.
type RetrievalError struct {
	Retriever string
	Err       error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval via %s failed: %v", e.Retriever, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// IsRetrievalError reports whether err is (or wraps) a RetrievalError.
func IsRetrievalError(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}
