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
	"fmt"
	"os"

	"github.com/AleutianAI/CausalForge/services/llm"
	"github.com/AleutianAI/CausalForge/services/pipeline"
	"github.com/AleutianAI/CausalForge/services/retrieval"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the config.yaml shape. Collaborator endpoints and credentials
// stay in environment variables (OLLAMA_BASE_URL, OPENAI_API_KEY,
// WEAVIATE_HOST); the file only selects which collaborators to wire.
type Config struct {
	Expert struct {
		// Backend selects the expert collaborator:
		// "ollama", "openai", or "none".
		Backend string `yaml:"backend" validate:"omitempty,oneof=ollama openai none"`
	} `yaml:"expert"`

	Retrieval struct {
		// Generative enables the LLM-backed knowledge extractor
		// (requires an expert backend).
		Generative bool `yaml:"generative"`
		// Vector enables the Weaviate similarity retriever.
		Vector bool `yaml:"vector"`
	} `yaml:"retrieval"`

	Templates struct {
		// Dir optionally overrides individual prompt templates with
		// <name>.tmpl files.
		Dir string `yaml:"dir"`
	} `yaml:"templates"`

	Server struct {
		Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
	} `yaml:"server"`
}

var configValidate = validator.New()

// loadConfig reads and validates config.yaml. A missing file yields the
// zero config (everything unconfigured), which is a legal deployment: the
// pipeline runs without collaborators and leaves the DAG unchanged.
func loadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := configValidate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// buildExpert constructs the configured expert backend.
func buildExpert(cfg Config) (pipeline.Expert, error) {
	switch cfg.Expert.Backend {
	case "ollama":
		client, err := llm.NewOllamaClient()
		if err != nil {
			return pipeline.NoExpert(), err
		}
		return pipeline.WithExpert(client), nil
	case "openai":
		client, err := llm.NewOpenAIClient()
		if err != nil {
			return pipeline.NoExpert(), err
		}
		return pipeline.WithExpert(client), nil
	case "", "none":
		return pipeline.NoExpert(), nil
	default:
		return pipeline.NoExpert(), fmt.Errorf("unknown expert backend %q", cfg.Expert.Backend)
	}
}

// buildPipeline wires the pipeline from the loaded config.
func buildPipeline(cfg Config) (*pipeline.Pipeline, error) {
	expert, err := buildExpert(cfg)
	if err != nil {
		return nil, err
	}

	var generative retrieval.KnowledgeExtractor
	if cfg.Retrieval.Generative && expert.Configured() {
		client, err := buildRetrievalClient(cfg)
		if err != nil {
			return nil, err
		}
		generative = retrieval.NewLLMKnowledgeExtractor(client)
	}

	var vector retrieval.SimilarityRetriever
	if cfg.Retrieval.Vector {
		client, err := retrieval.NewWeaviateClient()
		if err != nil {
			return nil, err
		}
		vector = retrieval.NewWeaviateRetriever(client)
	}

	templates := pipeline.DefaultTemplates()
	if cfg.Templates.Dir != "" {
		templates, err = pipeline.LoadTemplates(cfg.Templates.Dir)
		if err != nil {
			return nil, err
		}
	}

	return pipeline.New(pipeline.Config{
		Expert:     expert,
		Generative: generative,
		Vector:     vector,
		Templates:  templates,
	}), nil
}

// buildRetrievalClient returns the LLM client backing generative
// retrieval; it reuses the expert backend selection.
func buildRetrievalClient(cfg Config) (llm.LLMClient, error) {
	switch cfg.Expert.Backend {
	case "openai":
		return llm.NewOpenAIClient()
	default:
		return llm.NewOllamaClient()
	}
}
