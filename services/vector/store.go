// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vector defines the vector-similarity contract the hybrid
// retriever depends on. The production implementation is backed by
// Weaviate; an in-memory lexical index covers tests and offline demos.
package vector

import "context"

// Hit is one vector-similarity result, similarity-ordered by the backend.
type Hit struct {
	// ID is the stable identifier of the matched entity.
	ID string `json:"id"`

	// Name is the entity's display label.
	Name string `json:"name"`

	// Description is the entity's descriptive text.
	Description string `json:"description,omitempty"`

	// Score is the backend's similarity score, higher is better.
	Score float64 `json:"score"`
}

// Searcher is the vector-search contract.
//
// # Contract
//
//   - Search returns at most k hits ordered by similarity descending.
//   - An empty result is a normal outcome, not an error.
//
// # Thread Safety
//
// Implementations must be safe for concurrent read access.
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]Hit, error)
}

// Upserter is implemented by stores that also accept documents. Used by the
// ingest service; the reasoning core only ever searches.
type Upserter interface {
	Upsert(ctx context.Context, docs []Document) error
}

// Document is one entity to index: the text is embedded by the backend, the
// remaining fields ride along as metadata.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
