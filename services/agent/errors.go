// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

// InvalidQueryError reports input that Solve rejects before creating any
// session state. This is the only condition under which Solve returns an
// error instead of a terminal reasoning state (aside from cancellation).
type InvalidQueryError struct {
	// Reason describes the validation failure.
	Reason string
}

// Error implements the error interface.
func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// IsInvalidQuery checks if an error is an *InvalidQueryError.
func IsInvalidQuery(err error) bool {
	var iqe *InvalidQueryError
	return errors.As(err, &iqe)
}

// LLMBackendError reports a structural failure of an external collaborator
// mid-session. It is distinct from a malformed LLM response, which the parser
// absorbs without error. A backend error resolves the session into a terminal
// llm_error state rather than escaping Solve.
type LLMBackendError struct {
	// Stage is the phase that failed (think, expand, rerank, retrieve).
	Stage string

	// Cause is the underlying collaborator error.
	Cause error
}

// Error implements the error interface.
func (e *LLMBackendError) Error() string {
	return fmt.Sprintf("backend failure during %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LLMBackendError) Unwrap() error {
	return e.Cause
}

// IsLLMBackend checks if an error is an *LLMBackendError.
func IsLLMBackend(err error) bool {
	var lbe *LLMBackendError
	return errors.As(err, &lbe)
}
