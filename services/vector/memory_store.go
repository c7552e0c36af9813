// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vector

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Compile-time interface implementation checks.
var (
	_ Searcher = (*MemoryStore)(nil)
	_ Upserter = (*MemoryStore)(nil)
)

// MemoryStore is an in-memory Searcher that scores by token overlap.
//
// # Description
//
// Stands in for a real vector index in tests and the offline demo. Scoring
// is the fraction of query tokens present in the document text, which is a
// crude but deterministic similarity: hits are ordered descending and ties
// break by insertion order, matching what the hybrid retriever expects from
// a similarity-ordered backend.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert implements Upserter. Documents with a known id are replaced in
// place, preserving insertion order.
func (s *MemoryStore) Upsert(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		replaced := false
		for i, existing := range s.docs {
			if existing.ID == doc.ID {
				s.docs[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			s.docs = append(s.docs, doc)
		}
	}
	return nil
}

// Search implements Searcher.
func (s *MemoryStore) Search(ctx context.Context, text string, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	queryTokens := tokenize(text)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		hit   Hit
		order int
	}
	var matches []scored
	for i, doc := range s.docs {
		docTokens := tokenSet(tokenize(doc.Name + " " + doc.Description))
		overlap := 0
		for _, tok := range queryTokens {
			if docTokens[tok] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		matches = append(matches, scored{
			hit: Hit{
				ID:          doc.ID,
				Name:        doc.Name,
				Description: doc.Description,
				Score:       float64(overlap) / float64(len(queryTokens)),
			},
			order: i,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].hit.Score != matches[j].hit.Score {
			return matches[i].hit.Score > matches[j].hit.Score
		}
		return matches[i].order < matches[j].order
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	hits := make([]Hit, len(matches))
	for i, m := range matches {
		hits[i] = m.hit
	}
	return hits, nil
}

func tokenize(text string) []string {
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

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
