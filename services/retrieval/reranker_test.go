// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crag-labs/crag/services/agent/datatypes"
)

// recordingScorer returns canned scores and records what it was asked.
type recordingScorer struct {
	scores    []float64
	err       error
	calls     int
	lastTexts []string
}

func (r *recordingScorer) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	r.calls++
	r.lastTexts = texts
	if r.err != nil {
		return nil, r.err
	}
	return r.scores, nil
}

func TestScoreAndPrune_ScoresZipBackByPosition(t *testing.T) {
	scorer := &recordingScorer{scores: []float64{0.1, 0.9, 0.5}}
	adapter, err := NewRerankerAdapter(scorer, true)
	require.NoError(t, err)

	input := []datatypes.Candidate{
		{ID: "a", Name: "A", Description: "first"},
		{ID: "b", Name: "B", Description: "second"},
		{ID: "c", Name: "C", Description: "third"},
	}
	got, err := adapter.ScoreAndPrune(context.Background(), "q", input, 10)
	require.NoError(t, err)

	// Texts were built in input order from name+description.
	assert.Equal(t, []string{"A first", "B second", "C third"}, scorer.lastTexts)

	// Output sorted by assigned score, each score attached to its own text's
	// candidate.
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, 0.9, got[0].Score)
	assert.Equal(t, "c", got[1].ID)
	assert.Equal(t, 0.5, got[1].Score)
	assert.Equal(t, "a", got[2].ID)
	assert.Equal(t, 0.1, got[2].Score)

	// Input candidates are untouched.
	assert.Equal(t, 0.0, input[0].Score)
}

func TestScoreAndPrune_TruncatesToTopK(t *testing.T) {
	scorer := &recordingScorer{scores: []float64{0.3, 0.8, 0.1, 0.6}}
	adapter, err := NewRerankerAdapter(scorer, true)
	require.NoError(t, err)

	input := []datatypes.Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	got, err := adapter.ScoreAndPrune(context.Background(), "q", input, 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
}

func TestScoreAndPrune_StableOnTies(t *testing.T) {
	scorer := &recordingScorer{scores: []float64{0.5, 0.5, 0.5}}
	adapter, err := NewRerankerAdapter(scorer, true)
	require.NoError(t, err)

	input := []datatypes.Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got, err := adapter.ScoreAndPrune(context.Background(), "q", input, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestScoreAndPrune_EmptyInputSkipsScorer(t *testing.T) {
	scorer := &recordingScorer{}
	adapter, err := NewRerankerAdapter(scorer, true)
	require.NoError(t, err)

	got, err := adapter.ScoreAndPrune(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, scorer.calls)
}

func TestScoreAndPrune_MisalignedScoresIsError(t *testing.T) {
	scorer := &recordingScorer{scores: []float64{0.5}}
	adapter, err := NewRerankerAdapter(scorer, true)
	require.NoError(t, err)

	input := []datatypes.Candidate{{ID: "a"}, {ID: "b"}}
	got, err := adapter.ScoreAndPrune(context.Background(), "q", input, 5)
	require.Error(t, err)
	assert.True(t, IsScoreAlignment(err))
	assert.Nil(t, got, "misalignment is never repaired by truncation or padding")
}

func TestScoreAndPrune_ScorerErrorPropagates(t *testing.T) {
	boom := errors.New("scorer down")
	adapter, err := NewRerankerAdapter(&recordingScorer{err: boom}, true)
	require.NoError(t, err)

	_, err = adapter.ScoreAndPrune(context.Background(), "q", []datatypes.Candidate{{ID: "a"}}, 5)
	assert.ErrorIs(t, err, boom)
}

func TestScoreAndPrune_DisabledUsesRetrievalScores(t *testing.T) {
	scorer := &recordingScorer{scores: []float64{9, 9, 9}}
	adapter, err := NewRerankerAdapter(scorer, false)
	require.NoError(t, err)

	input := []datatypes.Candidate{
		{ID: "a", RetrievalScore: 0.2},
		{ID: "b", RetrievalScore: 0.8},
		{ID: "c"}, // no retrieval score: neutral 0.5
	}
	got, err := adapter.ScoreAndPrune(context.Background(), "q", input, 2)
	require.NoError(t, err)

	assert.Zero(t, scorer.calls, "disabled adapter never scores")
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, 0.8, got[0].Score)
	assert.Equal(t, "c", got[1].ID)
	assert.Equal(t, 0.5, got[1].Score)
}

func TestScoreAndPrune_Idempotent(t *testing.T) {
	scorer := &recordingScorer{scores: []float64{0.3, 0.9}}
	adapter, err := NewRerankerAdapter(scorer, true)
	require.NoError(t, err)

	input := []datatypes.Candidate{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	first, err := adapter.ScoreAndPrune(context.Background(), "q", input, 5)
	require.NoError(t, err)

	scorer.scores = []float64{0.9, 0.3} // same scores for the reordered batch
	second, err := adapter.ScoreAndPrune(context.Background(), "q", first, 5)
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-pruning an already pruned list changes nothing")
}

func TestNewRerankerAdapter_NilScorerOnlyValidWhenDisabled(t *testing.T) {
	_, err := NewRerankerAdapter(nil, true)
	assert.Error(t, err)

	adapter, err := NewRerankerAdapter(nil, false)
	require.NoError(t, err)
	got, err := adapter.ScoreAndPrune(context.Background(), "q", []datatypes.Candidate{{ID: "a", RetrievalScore: 0.4}}, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.4, got[0].Score)
}

func ids(candidates []datatypes.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.ID
	}
	return out
}
