// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminate_SetsReasonAndAnswerTogether(t *testing.T) {
	s := NewReasoningState("q")
	assert.False(t, s.Terminated())
	assert.Empty(t, s.TerminationReason().String())
	assert.Empty(t, s.FinalAnswer())

	s.Terminate(TerminationSuccess, "Christopher Nolan")

	assert.True(t, s.Terminated())
	assert.Equal(t, TerminationSuccess, s.TerminationReason())
	assert.Equal(t, "Christopher Nolan", s.FinalAnswer())
}

func TestTerminate_EmptyAnswerFallsBackToDefault(t *testing.T) {
	for _, reason := range []TerminationReason{
		TerminationSuccess,
		TerminationMaxSteps,
		TerminationExhaustedContext,
		TerminationNoInitialCandidates,
		TerminationLLMError,
	} {
		s := NewReasoningState("q")
		s.Terminate(reason, "")
		assert.NotEmpty(t, s.FinalAnswer(), "reason %s must carry a default answer", reason)
	}
}

func TestTerminate_IsAbsorbing(t *testing.T) {
	s := NewReasoningState("q")
	s.Terminate(TerminationSuccess, "first")
	s.Terminate(TerminationLLMError, "second")

	assert.Equal(t, TerminationSuccess, s.TerminationReason())
	assert.Equal(t, "first", s.FinalAnswer())
}

func TestMutatorsIgnoredAfterTermination(t *testing.T) {
	s := NewReasoningState("q")
	s.UpdateContext([]Candidate{{ID: "e1", Name: "kept"}})
	s.AddHypothesis("kept hypothesis")
	s.Terminate(TerminationExhaustedContext, "")

	s.UpdateContext([]Candidate{{ID: "e2", Name: "dropped"}})
	s.AddHypothesis("dropped hypothesis")

	assert.Equal(t, []string{"e1"}, s.ContextIDs())
	assert.Equal(t, []string{"kept hypothesis"}, s.Hypotheses)
}

func TestAddHypothesis_SkipsEmpty(t *testing.T) {
	s := NewReasoningState("q")
	s.AddHypothesis("")
	s.AddHypothesis("real")
	assert.Equal(t, []string{"real"}, s.Hypotheses)
}

func TestDefaultAnswer_UnknownReason(t *testing.T) {
	assert.NotEmpty(t, TerminationReason("something_else").DefaultAnswer())
}
