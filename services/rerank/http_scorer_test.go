// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPScorer_PostsQueryAndTexts(t *testing.T) {
	var gotReq scoreRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rerank", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.9, 0.1}})
	}))
	defer server.Close()

	scorer, err := NewHTTPScorer(server.URL)
	require.NoError(t, err)

	scores, err := scorer.Score(context.Background(), "who directed inception", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, scores)
	assert.Equal(t, "who directed inception", gotReq.Query)
	assert.Equal(t, []string{"a", "b"}, gotReq.Texts)
}

func TestHTTPScorer_EmptyInputSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	scorer, err := NewHTTPScorer(server.URL)
	require.NoError(t, err)

	scores, err := scorer.Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
	assert.Equal(t, int32(0), calls.Load())
}

func TestHTTPScorer_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.5}})
	}))
	defer server.Close()

	scorer, err := NewHTTPScorer(server.URL)
	require.NoError(t, err)

	scores, err := scorer.Score(context.Background(), "q", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, scores)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPScorer_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	scorer, err := NewHTTPScorer(server.URL)
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.True(t, IsScorerError(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPScorer_ScoreCountMismatchIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.5}})
	}))
	defer server.Close()

	scorer, err := NewHTTPScorer(server.URL)
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), "q", []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 scores for 2 texts")
}

func TestHTTPScorer_CancelledContextStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	scorer, err := NewHTTPScorer(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = scorer.Score(ctx, "q", []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPScorer_Validation(t *testing.T) {
	_, err := NewHTTPScorer("")
	assert.Error(t, err)

	scorer, err := NewHTTPScorer("http://localhost:9000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", scorer.baseURL)
}
