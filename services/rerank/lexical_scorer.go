// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rerank

import (
	"context"
	"strings"
)

// Compile-time interface implementation check.
var _ Scorer = (*LexicalScorer)(nil)

// LexicalScorer scores by query-token overlap.
//
// # Description
//
// A dependency-free stand-in for the cross-encoder: the score of a text is
// the fraction of query tokens it contains. Deterministic and cheap, which
// is what the tests and the offline demo need; a production deployment
// points the reranker adapter at HTTPScorer instead.
type LexicalScorer struct{}

// NewLexicalScorer creates the fallback scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

// Score implements Scorer. Always returns len(texts) scores.
func (LexicalScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := splitTokens(query)
	scores := make([]float64, len(texts))
	if len(queryTokens) == 0 {
		return scores, nil
	}
	for i, text := range texts {
		textTokens := make(map[string]bool)
		for _, tok := range splitTokens(text) {
			textTokens[tok] = true
		}
		overlap := 0
		for _, tok := range queryTokens {
			if textTokens[tok] {
				overlap++
			}
		}
		scores[i] = float64(overlap) / float64(len(queryTokens))
	}
	return scores, nil
}

func splitTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
