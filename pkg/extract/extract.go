// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract recovers a structured JSON object from free-form LLM
// collaborator text.
//
// Collaborator replies are unstructured prose expected to contain a JSON
// object somewhere inside. Extraction is a total function: it tries an
// ordered list of strategies and, when every strategy fails, returns an
// empty result pre-populated with the caller's required keys instead of an
// error. Downstream code therefore never checks for key presence.
//
// # Strategies
//
//  1. Fenced block: a ```json fenced block is parsed directly.
//  2. Balanced scan: a depth-counting state machine walks the text and
//     collects each top-level balanced {...} span; the first span whose
//     parsed content contains the caller's discriminator key wins. The
//     discriminator guards against accepting an inner or unrelated object
//     when several exist.
//  3. Greedy span: everything between the first '{' and the last '}' is
//     parsed as a last resort.
//
// Each strategy is pure and independently testable.
package extract

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Result is the structured object recovered from collaborator text.
// After Extract returns, every required key is present.
type Result map[string]any

// Options controls extraction for one stage's response shape.
type Options struct {
	// Required maps each key the caller depends on to its default value.
	// Missing keys are filled with these defaults after parsing; when no
	// strategy succeeds the result consists of exactly these defaults.
	Required map[string]any

	// Discriminator is the key whose presence identifies the wanted object
	// during the balanced scan (for example "problem_domain" for review
	// responses). Empty means any top-level object is acceptable.
	Discriminator string
}

// Extract recovers a structured result from raw collaborator text.
//
// Never returns nil and never panics; see the package comment for the
// strategy order. The strategy that produced the result is logged at debug
// level for troubleshooting.
func Extract(raw string, opts Options) Result {
	obj, strategy := extractObject(raw, opts.Discriminator)
	if obj == nil {
		slog.Debug("extraction failed, returning default-shaped result",
			"text_len", len(raw))
		obj = map[string]any{}
	} else {
		slog.Debug("extracted structured response", "strategy", strategy)
	}
	return normalize(obj, opts.Required)
}

// extractObject runs the strategy list and returns the first parsed
// mapping along with the strategy name, or (nil, "").
func extractObject(raw, discriminator string) (map[string]any, string) {
	if obj := parseFencedBlock(raw); obj != nil {
		return obj, "fenced_block"
	}
	if obj := parseBalancedSpan(raw, discriminator); obj != nil {
		return obj, "balanced_scan"
	}
	if obj := parseGreedySpan(raw); obj != nil {
		return obj, "greedy_span"
	}
	return nil, ""
}

// normalize inserts defaults for any required key the collaborator omitted.
func normalize(obj map[string]any, required map[string]any) Result {
	for key, def := range required {
		if _, present := obj[key]; !present {
			obj[key] = def
		}
	}
	return obj
}

// =============================================================================
// Strategy 1: fenced block
// =============================================================================

// parseFencedBlock looks for a fenced block explicitly marked as JSON and
// parses its contents. Only fences tagged "json" qualify; an untagged fence
// could hold anything.
func parseFencedBlock(raw string) map[string]any {
	rest := raw
	for {
		idx := strings.Index(rest, "```")
		if idx < 0 {
			return nil
		}
		rest = rest[idx+3:]
		end := strings.Index(rest, "```")
		if end < 0 {
			return nil
		}
		block := rest[:end]
		rest = rest[end+3:]

		// The fence tag is whatever precedes the first newline.
		nl := strings.IndexByte(block, '\n')
		if nl < 0 {
			continue
		}
		tag := strings.ToLower(strings.TrimSpace(block[:nl]))
		if tag != "json" {
			continue
		}
		if obj := parseMapping(block[nl+1:]); obj != nil {
			return obj
		}
	}
}

// =============================================================================
// Strategy 2: discriminator-guarded balanced scan
// =============================================================================

// parseBalancedSpan walks the text with a depth counter and tries each
// top-level balanced {...} span in order. A span is accepted when it parses
// to a mapping that contains the discriminator key (any mapping, if the
// discriminator is empty).
//
// The scanner is string-aware: braces inside JSON string literals do not
// affect the depth count.
func parseBalancedSpan(raw, discriminator string) map[string]any {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray closer outside any span
			}
			depth--
			if depth == 0 && start >= 0 {
				obj := parseMapping(raw[start : i+1])
				if obj != nil && hasKey(obj, discriminator) {
					return obj
				}
				start = -1
			}
		}
	}
	return nil
}

func hasKey(obj map[string]any, key string) bool {
	if key == "" {
		return true
	}
	_, ok := obj[key]
	return ok
}

// =============================================================================
// Strategy 3: greedy span
// =============================================================================

// parseGreedySpan takes the longest span delimited by the first '{' and the
// last '}' and attempts to parse it.
func parseGreedySpan(raw string) map[string]any {
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first < 0 || last <= first {
		return nil
	}
	return parseMapping(raw[first : last+1])
}

// parseMapping parses text as JSON and returns it only when the top-level
// value is a mapping.
func parseMapping(text string) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err != nil {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}
