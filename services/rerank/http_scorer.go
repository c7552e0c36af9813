// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var httpScorerTracer = otel.Tracer("crag.rerank.http")

// Retry policy for the scoring endpoint.
const (
	// maxScoreRetries is the maximum number of retry attempts.
	maxScoreRetries = 3

	// initialRetryDelay is the delay before the first retry. Subsequent
	// retries double it (1s, 2s, 4s).
	initialRetryDelay = 1 * time.Second
)

// ScorerError wraps HTTP failures from the scoring endpoint with enough
// structure for the retry loop to decide whether another attempt can help.
type ScorerError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

// Error implements the error interface.
func (e *ScorerError) Error() string {
	return fmt.Sprintf("rerank scorer error (status %d): %s", e.StatusCode, e.Message)
}

// IsScorerError checks if an error is a *ScorerError.
func IsScorerError(err error) bool {
	var se *ScorerError
	return errors.As(err, &se)
}

// Compile-time interface implementation check.
var _ Scorer = (*HTTPScorer)(nil)

// HTTPScorer calls a cross-encoder scoring sidecar over HTTP.
//
// # Description
//
// POSTs {query, texts} to the sidecar's /rerank endpoint and expects
// {scores: [...]} positionally aligned with the input. Transient failures
// (502/503/504, connection errors) are retried with exponential backoff;
// client errors are not. A response whose score count differs from the
// request's text count violates the Scorer contract and is returned as an
// error, never silently truncated or padded.
//
// # Thread Safety
//
// Safe for concurrent use.
type HTTPScorer struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPScorer creates a scorer for the sidecar at baseURL.
func NewHTTPScorer(baseURL string) (*HTTPScorer, error) {
	if baseURL == "" {
		return nil, errors.New("rerank base URL must not be empty")
	}
	return &HTTPScorer{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

type scoreRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Score implements Scorer with retry and exponential backoff.
func (s *HTTPScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	ctx, span := httpScorerTracer.Start(ctx, "HTTPScorer.Score")
	defer span.End()
	span.SetAttributes(attribute.Int("rerank.batch_size", len(texts)))

	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	retryDelay := initialRetryDelay

	for attempt := 0; attempt <= maxScoreRetries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying rerank scoring",
				"attempt", attempt,
				"delay", retryDelay,
				"lastError", lastErr,
			)
			select {
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, "context canceled during retry")
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		scores, err := s.callScoreEndpoint(ctx, query, texts)
		if err == nil {
			span.SetAttributes(attribute.Int("rerank.attempts", attempt+1))
			return scores, nil
		}
		lastErr = err
		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "non-retryable scorer error")
			return nil, err
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "all retries exhausted")
	return nil, fmt.Errorf("rerank scoring failed after %d attempts: %w", maxScoreRetries+1, lastErr)
}

func (s *HTTPScorer) callScoreEndpoint(ctx context.Context, query string, texts []string) ([]float64, error) {
	payload, err := json.Marshal(scoreRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ScorerError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Retryable:  isRetryableStatusCode(resp.StatusCode),
		}
	}

	var parsed scoreResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	if len(parsed.Scores) != len(texts) {
		return nil, fmt.Errorf("rerank scorer returned %d scores for %d texts", len(parsed.Scores), len(texts))
	}
	return parsed.Scores, nil
}

func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *ScorerError
	if errors.As(err, &se) {
		return se.Retryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Connection-level failures may be transient.
	return true
}
