// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import "sort"

// Edge is one directed edge of the built graph, carrying the source link's
// rule text as metadata.
type Edge struct {
	From string
	To   string
	Rule string
}

// Graph is the directed multigraph built from a DAG's causal_graph.
//
// It exists purely for reporting: node/edge counts, acyclicity, and
// connectivity. Pattern classification (chain/fork/collider) is requested
// from the external collaborator, never computed here.
type Graph struct {
	edges []Edge
	// succ maps a node to its successors; nodes holds every node seen,
	// including edge-less ones introduced only as a skipped link's cause.
	succ  map[string][]string
	nodes map[string]struct{}
}

// Build converts a DAG's causal link list into a Graph.
//
// For every link: a list-valued cause contributes one edge per element to
// the effect; a scalar cause contributes a single edge. Links with an empty
// effect are skipped entirely. Duplicate edges are kept (multigraph).
func Build(d *DAG) *Graph {
	g := &Graph{
		succ:  make(map[string][]string),
		nodes: make(map[string]struct{}),
	}
	if d == nil {
		return g
	}
	for _, link := range d.CausalGraph {
		if link.Effect == "" {
			continue
		}
		for _, cause := range link.Cause.IDs() {
			if cause == "" {
				continue
			}
			g.edges = append(g.edges, Edge{From: cause, To: link.Effect, Rule: link.Rule})
			g.succ[cause] = append(g.succ[cause], link.Effect)
			g.nodes[cause] = struct{}{}
			g.nodes[link.Effect] = struct{}{}
		}
	}
	return g
}

// Edges returns a copy of the edge list in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Nodes returns the sorted node identifiers.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of distinct nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, duplicates included.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// IsEmpty reports whether the graph has no nodes at all. The optimization
// stage short-circuits on an empty graph.
func (g *Graph) IsEmpty() bool { return len(g.nodes) == 0 }

// IsAcyclic reports whether the directed graph contains no cycle. The
// empty graph is vacuously acyclic.
//
// This is informational metadata for reports, never a validation gate.
func (g *Graph) IsAcyclic() bool {
	const (
		unseen = 0
		open   = 1
		done   = 2
	)
	state := make(map[string]int, len(g.nodes))
	var visit func(n string) bool
	visit = func(n string) bool {
		state[n] = open
		for _, next := range g.succ[n] {
			switch state[next] {
			case open:
				return false
			case unseen:
				if !visit(next) {
					return false
				}
			}
		}
		state[n] = done
		return true
	}
	for n := range g.nodes {
		if state[n] == unseen && !visit(n) {
			return false
		}
	}
	return true
}

// IsConnected reports whether the graph is weakly connected (one component
// when edge direction is ignored). The empty graph reports true so that an
// untouched DAG does not read as defective.
func (g *Graph) IsConnected() bool {
	if len(g.nodes) <= 1 {
		return true
	}
	undirected := make(map[string][]string, len(g.nodes))
	for _, e := range g.edges {
		undirected[e.From] = append(undirected[e.From], e.To)
		undirected[e.To] = append(undirected[e.To], e.From)
	}
	var start string
	for n := range g.nodes {
		start = n
		break
	}
	seen := map[string]struct{}{start: {}}
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range undirected[n] {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
	return len(seen) == len(g.nodes)
}
