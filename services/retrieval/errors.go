// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"errors"
	"fmt"
)

// NoInitialCandidatesError is returned by RetrieveInitial when neither the
// vector index nor the knowledge graph produced a single hit for the query.
//
// This is an expected, recoverable condition: the agent maps it to the
// NO_INITIAL_CANDIDATES termination reason rather than propagating an empty
// list that would fail somewhere less obvious.
type NoInitialCandidatesError struct {
	Query string
}

// Error implements the error interface.
func (e *NoInitialCandidatesError) Error() string {
	q := e.Query
	if len(q) > 50 {
		q = q[:50] + "..."
	}
	return fmt.Sprintf("no initial candidates found for query: %s", q)
}

// IsNoInitialCandidates checks if an error is a *NoInitialCandidatesError.
func IsNoInitialCandidates(err error) bool {
	var nice *NoInitialCandidatesError
	return errors.As(err, &nice)
}

// ScoreAlignmentError reports a scorer that violated its positional-output
// contract. The agent treats it as a backend failure; the mismatched output
// is never truncated or padded to fit.
type ScoreAlignmentError struct {
	Texts  int
	Scores int
}

// Error implements the error interface.
func (e *ScoreAlignmentError) Error() string {
	return fmt.Sprintf("scorer returned %d scores for %d texts", e.Scores, e.Texts)
}

// IsScoreAlignment checks if an error is a *ScoreAlignmentError.
func IsScoreAlignment(err error) bool {
	var sae *ScoreAlignmentError
	return errors.As(err, &sae)
}
