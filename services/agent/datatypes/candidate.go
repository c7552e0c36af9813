// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the value records shared between the retrieval
// layer and the reasoning agent.
//
// The central type is Candidate, an immutable retrieval hit. Earlier
// iterations of this system passed mutable maps between stages and paid for
// it with aliasing bugs: a score written in the reranker showed up in a list
// the retriever still held. Candidate is a plain comparable value, every
// transformation returns a new value, and two candidates with the same
// fields are equal no matter where they were created.
package datatypes

// CandidateSource tags the provenance of a retrieval hit.
type CandidateSource string

const (
	// SourceVector marks hits returned by vector-similarity search.
	SourceVector CandidateSource = "vector"

	// SourceGraph marks hits returned by knowledge-graph node search.
	SourceGraph CandidateSource = "graph"

	// SourceExpansion marks hits discovered during frontier expansion.
	SourceExpansion CandidateSource = "expansion"

	// SourceUnknown is the normalization fallback for loosely structured
	// input that carries no provenance.
	SourceUnknown CandidateSource = "unknown"
)

// Candidate is one retrievable unit (entity, passage, or graph node) under
// consideration by the reasoning loop.
//
// # Invariants
//
//   - A Candidate is immutable once constructed. Score changes go through
//     WithScore, which returns a new value.
//   - ID is non-empty for every candidate produced by the retrieval layer.
//   - The struct is comparable: equality is field-by-field value equality,
//     which is what deduplication and the tests rely on.
//
// # Thread Safety
//
// Candidates are plain values and may be freely copied across goroutines.
type Candidate struct {
	// ID is the stable identifier, unique within a reasoning session.
	ID string

	// Name is the display/lookup text for the underlying node.
	Name string

	// Description is the text used when scoring the candidate.
	Description string

	// Score is the current relevance score. Zero until a reranker or
	// retrieval backend assigns one.
	Score float64

	// RetrievalScore preserves the score assigned at retrieval time, so the
	// pass-through pruning policy can fall back to it when reranking is
	// disabled.
	RetrievalScore float64

	// Source records which backend produced this candidate.
	Source CandidateSource
}

// RawRecord is a loosely structured retrieval hit, typically decoded from a
// backend response. Fields may live at the top level or nested under
// "metadata"; CandidateFromRaw handles both shapes.
type RawRecord = map[string]any

// CandidateFromRaw builds a Candidate from a loosely structured record.
//
// Description:
//
//	Extracts id, name, and description with fallback to a nested "metadata"
//	object, mirroring the shapes the vector and graph backends return.
//	Missing name/description normalize to explicit defaults rather than
//	failing; a record with no usable id at all yields a Candidate with an
//	empty ID, which the retrieval layer drops.
//
//	The input map is never mutated.
//
// Inputs:
//
//	raw - The record to normalize. May be nil.
//
// Outputs:
//
//	Candidate - The normalized immutable candidate.
func CandidateFromRaw(raw RawRecord) Candidate {
	if raw == nil {
		return Candidate{Name: "Unknown", Source: SourceUnknown}
	}

	meta, _ := raw["metadata"].(map[string]any)

	id := stringField(raw, "id")
	if id == "" {
		id = stringField(raw, "node_id")
	}
	if id == "" {
		id = stringField(meta, "id")
	}

	name := stringField(raw, "name")
	if name == "" {
		name = stringField(meta, "name")
	}
	if name == "" {
		name = "Unknown"
	}

	description := stringField(raw, "description")
	if description == "" {
		description = stringField(meta, "description")
	}

	source := CandidateSource(stringField(raw, "source"))
	if source == "" {
		source = SourceUnknown
	}

	return Candidate{
		ID:             id,
		Name:           name,
		Description:    description,
		Score:          floatField(raw, "score"),
		RetrievalScore: floatField(raw, "retrieval_score"),
		Source:         source,
	}
}

// WithScore returns a copy of the candidate with the given score assigned.
// The receiver is unchanged.
func (c Candidate) WithScore(score float64) Candidate {
	c.Score = score
	return c
}

// WithSource returns a copy of the candidate with the given provenance tag.
func (c Candidate) WithSource(source CandidateSource) Candidate {
	c.Source = source
	return c
}

// ScoringText is the text handed to the reranking model for this candidate:
// name and description joined by a single space, matching the format the
// cross-encoder was tuned on.
func (c Candidate) ScoringText() string {
	if c.Description == "" {
		return c.Name
	}
	return c.Name + " " + c.Description
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
