// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/crag-labs/crag/services/agent/datatypes"
	"github.com/crag-labs/crag/services/rerank"
)

var rerankerTracer = otel.Tracer("crag.retrieval.reranker")

// =============================================================================
// Reranker Adapter
// =============================================================================

// RerankerAdapter turns raw scorer output into an ordered, pruned candidate
// list.
//
// # Alignment invariant
//
// The scoring texts are built from the exact slice that the returned scores
// are zipped back into — one loop builds texts[i] from candidates[i], the
// next assigns scores[i] to candidates[i]. No normalized copy, no second
// ordering. A previous generation of this pipeline built its text batch
// from a cleaned-up copy and indexed the scores back into the original,
// differently ordered list; every safeguard in this file exists because of
// that defect.
//
// # Thread Safety
//
// Safe for concurrent use provided the scorer is.
type RerankerAdapter struct {
	scorer  rerank.Scorer
	enabled bool
}

// NewRerankerAdapter creates the adapter.
//
// Inputs:
//
//	scorer - The relevance scorer. Must not be nil when enabled is true.
//	enabled - When false, ScoreAndPrune truncates without scoring.
//
// Outputs:
//
//	*RerankerAdapter - The adapter.
//	error - Non-nil if enabled and scorer is nil.
func NewRerankerAdapter(scorer rerank.Scorer, enabled bool) (*RerankerAdapter, error) {
	if enabled && scorer == nil {
		return nil, fmt.Errorf("scorer must not be nil when reranking is enabled")
	}
	return &RerankerAdapter{scorer: scorer, enabled: enabled}, nil
}

// ScoreAndPrune scores the candidates against the query and returns at most
// topK of them, sorted by score descending.
//
// Description:
//
//	Builds one scoring text per candidate (name + space + description),
//	invokes the scorer once for the whole batch, assigns each returned
//	score to the candidate at the same position (as a new value), then
//	stable-sorts descending and truncates to topK. Ties keep input order.
//
//	An empty input returns an empty list without invoking the scorer. When
//	reranking is disabled the input is returned truncated to topK with
//	retrieval scores promoted, not zero-filled.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	query - The question text.
//	candidates - The batch to score. Never mutated.
//	topK - Maximum candidates to keep. Must be positive.
//
// Outputs:
//
//	[]datatypes.Candidate - New candidate values with scores assigned.
//	error - *ScoreAlignmentError if the scorer breaks its contract; scorer
//	errors otherwise.
func (r *RerankerAdapter) ScoreAndPrune(ctx context.Context, query string, candidates []datatypes.Candidate, topK int) ([]datatypes.Candidate, error) {
	ctx, span := rerankerTracer.Start(ctx, "RerankerAdapter.ScoreAndPrune")
	defer span.End()
	span.SetAttributes(
		attribute.Int("rerank.input", len(candidates)),
		attribute.Int("rerank.top_k", topK),
		attribute.Bool("rerank.enabled", r.enabled),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(candidates) == 0 {
		return []datatypes.Candidate{}, nil
	}

	if !r.enabled {
		return passThrough(candidates, topK), nil
	}

	// Single source list: texts and score assignment walk the same slice.
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.ScoringText()
	}

	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring failed")
		return nil, fmt.Errorf("rerank scoring: %w", err)
	}
	if len(scores) != len(candidates) {
		err := &ScoreAlignmentError{Texts: len(candidates), Scores: len(scores)}
		span.RecordError(err)
		span.SetStatus(codes.Error, "misaligned scorer output")
		return nil, err
	}

	scored := make([]datatypes.Candidate, len(candidates))
	for i, c := range candidates {
		scored[i] = c.WithScore(scores[i])
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	span.SetAttributes(attribute.Int("rerank.kept", len(scored)))
	return scored, nil
}

// passThrough implements the disabled-reranker policy: promote retrieval
// scores, sort, truncate. Candidates that never received a retrieval score
// get a neutral 0.5 so they are neither pinned to the top nor discarded
// outright.
func passThrough(candidates []datatypes.Candidate, topK int) []datatypes.Candidate {
	out := make([]datatypes.Candidate, len(candidates))
	for i, c := range candidates {
		score := c.RetrievalScore
		if score <= 0 {
			score = 0.5
		}
		out[i] = c.WithScore(score)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
