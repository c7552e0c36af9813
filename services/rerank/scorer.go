// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rerank provides the relevance-scoring contract used by the
// reranker adapter, an HTTP client for a cross-encoder sidecar, and a
// lexical fallback for environments without one.
package rerank

import "context"

// Scorer scores a batch of texts against a query.
//
// # Contract
//
// Score returns exactly len(texts) scores, positionally aligned with the
// input. Callers preserve that alignment end-to-end; implementations that
// cannot honor it must return an error instead of a shorter or reordered
// slice.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}
