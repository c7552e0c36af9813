// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval implements the hybrid retrieval module and the reranker
// adapter: the two stages that sit between the external vector/graph/scorer
// backends and the reasoning agent.
//
// Everything in this package produces and consumes immutable
// datatypes.Candidate values. Result sets are always deduplicated by id and
// deterministically ordered, so a reasoning session replayed against the
// same backends walks the same frontier.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/crag-labs/crag/services/agent/datatypes"
	"github.com/crag-labs/crag/services/graph"
	"github.com/crag-labs/crag/services/vector"
)

var hrmTracer = otel.Tracer("crag.retrieval.hybrid")

// =============================================================================
// Hybrid Retrieval Module
// =============================================================================

// HybridRetrievalModule fuses dense vector hits with symbolic graph hits
// and performs frontier expansion over the knowledge graph.
//
// # Description
//
// RetrieveInitial answers "where does reasoning start": the union of a
// vector-similarity search and a graph node search, deduplicated by id.
// Expand answers "where does reasoning go next": 1-hop neighbors of the
// highest-scored candidates, deduplicated against everything already held.
//
// # Thread Safety
//
// Safe for concurrent use provided the underlying searcher and graph are;
// the module itself holds no mutable state.
type HybridRetrievalModule struct {
	searcher vector.Searcher
	kg       graph.KnowledgeGraph
}

// NewHybridRetrievalModule creates the module over its two backends.
//
// Inputs:
//
//	searcher - Vector-similarity backend. Must not be nil.
//	kg - Knowledge-graph backend. Must not be nil.
//
// Outputs:
//
//	*HybridRetrievalModule - The module.
//	error - Non-nil if either backend is nil.
func NewHybridRetrievalModule(searcher vector.Searcher, kg graph.KnowledgeGraph) (*HybridRetrievalModule, error) {
	if searcher == nil {
		return nil, fmt.Errorf("vector searcher must not be nil")
	}
	if kg == nil {
		return nil, fmt.Errorf("knowledge graph must not be nil")
	}
	return &HybridRetrievalModule{searcher: searcher, kg: kg}, nil
}

// RetrieveInitial returns the fused initial candidate set for a query.
//
// Description:
//
//	Issues a top-k vector search and a graph node search seeded from the
//	query text, then merges them: vector hits first in similarity order,
//	then graph hits not already present, in backend order. The union is
//	deduplicated by id and capped at k.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	query - The question text. Must not be empty.
//	k - Maximum candidates to return. Must be positive.
//
// Outputs:
//
//	[]datatypes.Candidate - The fused, deduplicated candidate set.
//	error - *NoInitialCandidatesError when both sources are empty; any
//	backend error otherwise.
func (m *HybridRetrievalModule) RetrieveInitial(ctx context.Context, query string, k int) ([]datatypes.Candidate, error) {
	ctx, span := hrmTracer.Start(ctx, "HybridRetrievalModule.RetrieveInitial")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.k", k))

	if k <= 0 {
		return nil, fmt.Errorf("retrieval k must be positive, got %d", k)
	}

	hits, err := m.searcher.Search(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vector search failed")
		return nil, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[string]bool, k)
	candidates := make([]datatypes.Candidate, 0, k)
	for _, hit := range hits {
		if hit.ID == "" || seen[hit.ID] {
			continue
		}
		seen[hit.ID] = true
		candidates = append(candidates, datatypes.Candidate{
			ID:             hit.ID,
			Name:           hit.Name,
			Description:    hit.Description,
			Score:          hit.Score,
			RetrievalScore: hit.Score,
			Source:         datatypes.SourceVector,
		})
	}
	span.SetAttributes(attribute.Int("retrieval.vector_hits", len(candidates)))

	nodes, err := m.kg.SearchNodes(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graph search failed")
		return nil, fmt.Errorf("graph node search: %w", err)
	}
	graphAdded := 0
	for _, node := range nodes {
		if node.ID == "" || seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		candidates = append(candidates, datatypes.Candidate{
			ID:             node.ID,
			Name:           node.Name,
			Description:    node.Description,
			RetrievalScore: 1.0,
			Source:         datatypes.SourceGraph,
		})
		graphAdded++
	}
	span.SetAttributes(attribute.Int("retrieval.graph_hits", graphAdded))

	if len(candidates) == 0 {
		err := &NoInitialCandidatesError{Query: query}
		span.SetStatus(codes.Error, "no initial candidates")
		return nil, err
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	slog.Debug("Initial retrieval complete",
		"vector_hits", len(candidates)-graphAdded,
		"graph_hits", graphAdded,
		"total", len(candidates),
	)
	return candidates, nil
}

// Expand performs one round of frontier expansion.
//
// Description:
//
//	Selects at most maxExpansions candidates from the input, ordered by
//	score descending with ties broken by input position, and returns the
//	union of their 1-hop graph neighbors. Neighbors already present in the
//	input set, or discovered twice within this call, are not re-added. The
//	input slice is never modified.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	candidates - The current working set. May be empty.
//	maxExpansions - Frontier size. Must be positive; the agent validates
//	this at construction, the check here is a backstop.
//
// Outputs:
//
//	[]datatypes.Candidate - Newly discovered candidates only. Empty when
//	every selected node has no unseen neighbors.
//	error - Backend errors; never an error for an empty result.
func (m *HybridRetrievalModule) Expand(ctx context.Context, candidates []datatypes.Candidate, maxExpansions int) ([]datatypes.Candidate, error) {
	ctx, span := hrmTracer.Start(ctx, "HybridRetrievalModule.Expand")
	defer span.End()
	span.SetAttributes(
		attribute.Int("expand.input", len(candidates)),
		attribute.Int("expand.max", maxExpansions),
	)

	if maxExpansions <= 0 {
		return nil, fmt.Errorf("maxExpansions must be positive, got %d", maxExpansions)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	frontier := selectFrontier(candidates, maxExpansions)

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.ID] = true
	}

	var discovered []datatypes.Candidate
	for _, c := range frontier {
		neighbors, err := m.kg.Neighbors(ctx, c.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "neighbor lookup failed")
			return nil, fmt.Errorf("neighbors of %s: %w", c.ID, err)
		}
		for _, n := range neighbors {
			if n.ID == "" || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			description := n.Description
			if description == "" && n.Relation != "" {
				description = n.Relation + " of " + c.Name
			}
			discovered = append(discovered, datatypes.Candidate{
				ID:             n.ID,
				Name:           n.Name,
				Description:    description,
				RetrievalScore: 1.0,
				Source:         datatypes.SourceExpansion,
			})
		}
	}

	span.SetAttributes(attribute.Int("expand.discovered", len(discovered)))
	return discovered, nil
}

// selectFrontier returns at most max candidates ordered by score descending,
// ties broken by original position for determinism. The input is copied, not
// reordered.
func selectFrontier(candidates []datatypes.Candidate, max int) []datatypes.Candidate {
	type indexed struct {
		c   datatypes.Candidate
		pos int
	}
	ordered := make([]indexed, len(candidates))
	for i, c := range candidates {
		ordered[i] = indexed{c: c, pos: i}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].c.Score != ordered[j].c.Score {
			return ordered[i].c.Score > ordered[j].c.Score
		}
		return ordered[i].pos < ordered[j].pos
	})
	if len(ordered) > max {
		ordered = ordered[:max]
	}
	frontier := make([]datatypes.Candidate, len(ordered))
	for i, o := range ordered {
		frontier[i] = o.c
	}
	return frontier
}
