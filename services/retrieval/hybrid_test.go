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
	"github.com/crag-labs/crag/services/graph"
	"github.com/crag-labs/crag/services/vector"
)

// fakeSearcher returns canned vector hits and counts calls.
type fakeSearcher struct {
	hits  []vector.Hit
	err   error
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]vector.Hit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

// fakeKG returns canned node-search hits and a fixed neighbor map.
type fakeKG struct {
	searchHits    []graph.Node
	neighbors     map[string][]graph.Node
	searchErr     error
	neighborsErr  error
	neighborCalls int
}

func (f *fakeKG) SearchNodes(_ context.Context, _ string, _ int) ([]graph.Node, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeKG) Neighbors(_ context.Context, nodeID string) ([]graph.Node, error) {
	f.neighborCalls++
	if f.neighborsErr != nil {
		return nil, f.neighborsErr
	}
	return f.neighbors[nodeID], nil
}

func (f *fakeKG) NodeProperties(_ context.Context, _ string) (map[string]string, error) {
	return nil, nil
}

func TestRetrieveInitial_FusesVectorAndGraphHits(t *testing.T) {
	searcher := &fakeSearcher{hits: []vector.Hit{
		{ID: "v1", Name: "Inception", Description: "film", Score: 0.9},
		{ID: "shared", Name: "Nolan", Score: 0.8},
	}}
	kg := &fakeKG{searchHits: []graph.Node{
		{ID: "shared", Name: "Nolan"},
		{ID: "g1", Name: "DiCaprio"},
	}}
	hrm, err := NewHybridRetrievalModule(searcher, kg)
	require.NoError(t, err)

	got, err := hrm.RetrieveInitial(context.Background(), "inception", 10)
	require.NoError(t, err)

	require.Len(t, got, 3, "shared id must appear once")
	assert.Equal(t, "v1", got[0].ID)
	assert.Equal(t, datatypes.SourceVector, got[0].Source)
	assert.Equal(t, 0.9, got[0].RetrievalScore)
	assert.Equal(t, "shared", got[1].ID)
	assert.Equal(t, datatypes.SourceVector, got[1].Source, "vector wins the duplicate")
	assert.Equal(t, "g1", got[2].ID)
	assert.Equal(t, datatypes.SourceGraph, got[2].Source)
	assert.Equal(t, 1.0, got[2].RetrievalScore)
}

func TestRetrieveInitial_CapsUnionAtK(t *testing.T) {
	searcher := &fakeSearcher{hits: []vector.Hit{
		{ID: "v1", Score: 0.9}, {ID: "v2", Score: 0.8},
	}}
	kg := &fakeKG{searchHits: []graph.Node{
		{ID: "g1"}, {ID: "g2"}, {ID: "g3"},
	}}
	hrm, err := NewHybridRetrievalModule(searcher, kg)
	require.NoError(t, err)

	got, err := hrm.RetrieveInitial(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "v1", got[0].ID, "vector hits keep priority under the cap")
}

func TestRetrieveInitial_EmptyBothSourcesIsTypedError(t *testing.T) {
	hrm, err := NewHybridRetrievalModule(&fakeSearcher{}, &fakeKG{})
	require.NoError(t, err)

	got, err := hrm.RetrieveInitial(context.Background(), "unknown thing", 5)
	require.Error(t, err)
	assert.True(t, IsNoInitialCandidates(err))
	assert.Nil(t, got)
}

func TestRetrieveInitial_BackendErrorsPropagate(t *testing.T) {
	boom := errors.New("backend down")

	hrm, err := NewHybridRetrievalModule(&fakeSearcher{err: boom}, &fakeKG{})
	require.NoError(t, err)
	_, err = hrm.RetrieveInitial(context.Background(), "q", 5)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNoInitialCandidates(err))

	hrm, err = NewHybridRetrievalModule(&fakeSearcher{hits: []vector.Hit{{ID: "v1"}}}, &fakeKG{searchErr: boom})
	require.NoError(t, err)
	_, err = hrm.RetrieveInitial(context.Background(), "q", 5)
	assert.ErrorIs(t, err, boom)
}

func TestExpand_ReturnsOnlyUnseenNeighbors(t *testing.T) {
	kg := &fakeKG{neighbors: map[string][]graph.Node{
		"a": {
			{ID: "b", Name: "held already"},
			{ID: "n1", Name: "new", Relation: "director"},
		},
		"b": {
			{ID: "n1", Name: "new"}, // discovered twice, kept once
			{ID: "n2", Name: "also new", Description: "own description"},
		},
	}}
	hrm, err := NewHybridRetrievalModule(&fakeSearcher{}, kg)
	require.NoError(t, err)

	input := []datatypes.Candidate{
		{ID: "a", Name: "A", Score: 0.9},
		{ID: "b", Name: "B", Score: 0.5},
	}
	got, err := hrm.Expand(context.Background(), input, 5)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].ID)
	assert.Equal(t, "director of A", got[0].Description, "relation fallback names the source node")
	assert.Equal(t, datatypes.SourceExpansion, got[0].Source)
	assert.Equal(t, "n2", got[1].ID)
	assert.Equal(t, "own description", got[1].Description)
}

func TestExpand_FrontierBoundedAndScoreOrdered(t *testing.T) {
	kg := &fakeKG{neighbors: map[string][]graph.Node{
		"low":  {{ID: "from-low"}},
		"high": {{ID: "from-high"}},
		"mid":  {{ID: "from-mid"}},
	}}
	hrm, err := NewHybridRetrievalModule(&fakeSearcher{}, kg)
	require.NoError(t, err)

	input := []datatypes.Candidate{
		{ID: "low", Score: 0.1},
		{ID: "high", Score: 0.9},
		{ID: "mid", Score: 0.5},
	}
	got, err := hrm.Expand(context.Background(), input, 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "from-high", got[0].ID)
	assert.Equal(t, "from-mid", got[1].ID)
	assert.Equal(t, 2, kg.neighborCalls, "only the frontier is expanded")

	// The input slice keeps its original order.
	assert.Equal(t, "low", input[0].ID)
}

func TestExpand_TieBreaksByInputPosition(t *testing.T) {
	kg := &fakeKG{neighbors: map[string][]graph.Node{
		"first":  {{ID: "n1"}},
		"second": {{ID: "n2"}},
	}}
	hrm, err := NewHybridRetrievalModule(&fakeSearcher{}, kg)
	require.NoError(t, err)

	input := []datatypes.Candidate{
		{ID: "first", Score: 0.5},
		{ID: "second", Score: 0.5},
	}
	got, err := hrm.Expand(context.Background(), input, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
}

func TestExpand_EmptyInputAndNoNeighbors(t *testing.T) {
	kg := &fakeKG{}
	hrm, err := NewHybridRetrievalModule(&fakeSearcher{}, kg)
	require.NoError(t, err)

	got, err := hrm.Expand(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = hrm.Expand(context.Background(), []datatypes.Candidate{{ID: "a"}}, 5)
	require.NoError(t, err)
	assert.Empty(t, got, "zero neighbors is an empty result, not an error")
}

func TestNewHybridRetrievalModule_NilBackends(t *testing.T) {
	_, err := NewHybridRetrievalModule(nil, &fakeKG{})
	assert.Error(t, err)
	_, err = NewHybridRetrievalModule(&fakeSearcher{}, nil)
	assert.Error(t, err)
}
