// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crag-labs/crag/services/agent"
	"github.com/crag-labs/crag/services/agent/datatypes"
	"github.com/crag-labs/crag/services/api/observability"
)

// scriptedSolver returns a fixed outcome per call.
type scriptedSolver struct {
	state *datatypes.ReasoningState
	err   error
	calls int
}

func (s *scriptedSolver) Solve(_ context.Context, query string) (*datatypes.ReasoningState, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.state, nil
}

func successState(query, answer string, hops int) *datatypes.ReasoningState {
	state := datatypes.NewReasoningState(query)
	state.HopCount = hops
	state.Terminate(datatypes.TerminationSuccess, answer)
	return state
}

func newTestServer(t *testing.T, solver Solver) *Server {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	srv, err := NewServer(solver, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return srv
}

func postSolve(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleSolve_Success(t *testing.T) {
	solver := &scriptedSolver{state: successState("who directed Inception?", "Christopher Nolan", 1)}
	srv := newTestServer(t, solver)

	rec := postSolve(t, srv, `{"query":"who directed Inception?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Christopher Nolan", resp.Answer)
	assert.Equal(t, "success", resp.TerminationReason)
	assert.Equal(t, 1, resp.HopCount)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 1, solver.calls)
}

func TestHandleSolve_TerminalNonSuccessIsStillOK(t *testing.T) {
	state := datatypes.NewReasoningState("q")
	state.Terminate(datatypes.TerminationNoInitialCandidates, "")
	srv := newTestServer(t, &scriptedSolver{state: state})

	rec := postSolve(t, srv, `{"query":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no_initial_candidates", resp.TerminationReason)
	assert.NotEmpty(t, resp.Answer, "terminal states always carry an answer")
}

func TestHandleSolve_BadRequestBodies(t *testing.T) {
	srv := newTestServer(t, &scriptedSolver{state: successState("q", "a", 1)})

	for _, body := range []string{``, `{}`, `{"query":""}`, `not json`} {
		rec := postSolve(t, srv, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %q", body)
	}
}

func TestHandleSolve_InvalidQueryMapsTo400(t *testing.T) {
	solver := &scriptedSolver{err: &agent.InvalidQueryError{Reason: "query too long (max 1000 chars)"}}
	srv := newTestServer(t, solver)

	rec := postSolve(t, srv, `{"query":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query too long")
}

func TestHandleSolve_CancellationMapsTo408(t *testing.T) {
	srv := newTestServer(t, &scriptedSolver{err: context.Canceled})

	rec := postSolve(t, srv, `{"query":"x"}`)
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func TestHandleSolve_UnexpectedErrorMapsTo500(t *testing.T) {
	srv := newTestServer(t, &scriptedSolver{err: errors.New("boom")})

	rec := postSolve(t, srv, `{"query":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom", "internal details stay out of responses")
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &scriptedSolver{state: successState("q", "a", 0)})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv := newTestServer(t, &scriptedSolver{state: successState("q", "a", 0)})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_RequiresSolver(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}
