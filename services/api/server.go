// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api exposes the reasoning agent over HTTP.
//
// Routes:
//
//	POST /v1/solve  - run one reasoning session
//	GET  /healthz   - liveness probe
//	GET  /metrics   - Prometheus metrics
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/crag-labs/crag/services/agent"
	"github.com/crag-labs/crag/services/agent/datatypes"
	"github.com/crag-labs/crag/services/api/observability"
)

// Solver runs one reasoning session. *agent.CognitiveAgent satisfies it; the
// indirection exists so handler tests can script outcomes.
type Solver interface {
	Solve(ctx context.Context, query string) (*datatypes.ReasoningState, error)
}

var _ Solver = (*agent.CognitiveAgent)(nil)

// SolveRequest is the POST /v1/solve body.
type SolveRequest struct {
	Query string `json:"query" binding:"required"`
}

// SolveResponse is the POST /v1/solve reply.
type SolveResponse struct {
	RequestID         string           `json:"request_id"`
	Query             string           `json:"query"`
	Answer            string           `json:"answer"`
	TerminationReason string           `json:"termination_reason"`
	HopCount          int              `json:"hop_count"`
	Hypotheses        []string         `json:"hypotheses,omitempty"`
	Steps             []datatypes.Step `json:"steps,omitempty"`
	DurationMS        int64            `json:"duration_ms"`
}

// Server is the HTTP front end for the reasoning agent.
type Server struct {
	solver  Solver
	logger  *slog.Logger
	metrics *observability.SolveMetrics
	router  *gin.Engine
}

// NewServer wires the routes and middleware.
//
// Inputs:
//
//	solver - The reasoning agent. Must not be nil.
//	metrics - Solve metrics; nil disables recording.
//	logger - Structured logger; nil uses slog.Default().
func NewServer(solver Solver, metrics *observability.SolveMetrics, logger *slog.Logger) (*Server, error) {
	if solver == nil {
		return nil, errors.New("solver must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("crag-api"))

	s := &Server{
		solver:  solver,
		logger:  logger,
		metrics: metrics,
		router:  router,
	}

	router.POST("/v1/solve", s.handleSolve)
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s, nil
}

// Handler returns the underlying http.Handler, for tests and custom
// listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("api server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleSolve(c *gin.Context) {
	requestID := uuid.NewString()
	log := s.logger.With("request_id", requestID)

	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"request_id": requestID,
			"error":      "body must be JSON with a non-empty query field",
		})
		return
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
		defer s.metrics.ActiveSessions.Dec()
	}

	start := time.Now()
	state, err := s.solver.Solve(c.Request.Context(), req.Query)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.ObserveFailure()
		switch {
		case agent.IsInvalidQuery(err):
			log.Info("query rejected", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"request_id": requestID, "error": err.Error()})
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			log.Warn("session cancelled", "error", err)
			c.JSON(http.StatusRequestTimeout, gin.H{"request_id": requestID, "error": "request cancelled"})
		default:
			log.Error("solve failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"request_id": requestID, "error": "internal error"})
		}
		return
	}

	reason := state.TerminationReason().String()
	s.metrics.ObserveSession(reason, state.HopCount, elapsed.Seconds())
	log.Info("session completed",
		"reason", reason,
		"hops", state.HopCount,
		"duration_ms", elapsed.Milliseconds())

	c.JSON(http.StatusOK, SolveResponse{
		RequestID:         requestID,
		Query:             state.Query,
		Answer:            state.FinalAnswer(),
		TerminationReason: reason,
		HopCount:          state.HopCount,
		Hypotheses:        state.Hypotheses,
		Steps:             state.Steps,
		DurationMS:        elapsed.Milliseconds(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
