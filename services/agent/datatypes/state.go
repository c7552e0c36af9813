// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// TerminationReason is the closed set of outcome codes explaining why a
// reasoning session ended.
type TerminationReason string

const (
	// TerminationSuccess means the think phase reported an answer.
	TerminationSuccess TerminationReason = "success"

	// TerminationMaxSteps means the hop budget ran out without an answer.
	TerminationMaxSteps TerminationReason = "max_steps_reached"

	// TerminationExhaustedContext means frontier expansion produced no new
	// candidates, so there is nothing left to reason over.
	TerminationExhaustedContext TerminationReason = "exhausted_context"

	// TerminationNoInitialCandidates means neither the vector index nor the
	// knowledge graph returned anything for the query.
	TerminationNoInitialCandidates TerminationReason = "no_initial_candidates"

	// TerminationLLMError means a backend collaborator (LLM, reranker, or
	// graph expansion) failed structurally mid-session.
	TerminationLLMError TerminationReason = "llm_error"
)

// String returns the reason as a string (e.g. "success").
func (r TerminationReason) String() string {
	return string(r)
}

// defaultAnswers maps each termination reason to the human-readable answer a
// caller receives when the session ends without an extracted answer. Every
// reason has one; a terminal state never carries an empty answer.
var defaultAnswers = map[TerminationReason]string{
	TerminationSuccess:             "No answer could be extracted.",
	TerminationMaxSteps:            "Answer inference incomplete: reasoning budget exhausted. Please refine the query.",
	TerminationExhaustedContext:    "No relevant context found. Unable to answer.",
	TerminationNoInitialCandidates: "No relevant information found.",
	TerminationLLMError:            "Language model processing failed. Unable to complete reasoning.",
}

// DefaultAnswer returns the fallback answer for the reason.
func (r TerminationReason) DefaultAnswer() string {
	if a, ok := defaultAnswers[r]; ok {
		return a
	}
	return "Unable to determine answer."
}

// Step records one completed phase of a reasoning session, kept for
// observability. The steps trail is diagnostic only; the loop never branches
// on it.
type Step struct {
	// N is the hop number (0 for initial retrieval).
	N int `json:"n"`

	// Action is what the agent did (initial_retrieval, expand, terminate).
	Action string `json:"action"`

	// Thought is the raw LLM response or a short note for non-LLM steps.
	Thought string `json:"thought,omitempty"`

	// CandidateCount is the size of the working set after the step.
	CandidateCount int `json:"candidate_count"`
}

// ReasoningState is the evolving record of one query's reasoning session.
//
// # Description
//
// A ReasoningState is created at the start of Solve, mutated only by the
// agent across the hop loop, and becomes terminal (immutable) once a
// termination reason is assigned. It is never reused for another query.
//
// The single most important invariant lives here: the termination reason and
// the final answer are set together, in one Terminate call. There is no way
// to observe a terminated state with a reason but no answer, which closes a
// defect class the previous generation of this system shipped.
//
// # Thread Safety
//
// A ReasoningState belongs to exactly one Solve call and is not safe for
// concurrent mutation. Independent sessions never share one.
type ReasoningState struct {
	// Query is the original question text.
	Query string `json:"query"`

	// HopCount is the number of completed think-act-observe hops.
	HopCount int `json:"hop_count"`

	// Context is the currently retained working set of candidates, pruned
	// to the configured size after each observe step.
	Context []Candidate `json:"knowledge_graph_context"`

	// Hypotheses accumulates the working hypotheses the LLM produced.
	Hypotheses []string `json:"hypotheses,omitempty"`

	// Steps is the diagnostic trail of completed phases.
	Steps []Step `json:"steps,omitempty"`

	reason      TerminationReason
	finalAnswer string
	terminated  bool
}

// NewReasoningState creates the state for one query's session.
func NewReasoningState(query string) *ReasoningState {
	return &ReasoningState{Query: query}
}

// Terminate moves the state into its terminal form, assigning the reason and
// the final answer in a single transition.
//
// Description:
//
//	If answer is empty, the reason's default answer is used, so the terminal
//	state always carries a non-empty human-readable answer. The terminal
//	state is absorbing: once set, further Terminate calls are ignored.
//
// Inputs:
//
//	reason - The closed-set outcome code.
//	answer - The extracted answer text, or "" to use the reason's default.
func (s *ReasoningState) Terminate(reason TerminationReason, answer string) {
	if s.terminated {
		return
	}
	if answer == "" {
		answer = reason.DefaultAnswer()
	}
	s.reason = reason
	s.finalAnswer = answer
	s.terminated = true
}

// Terminated reports whether the session has ended.
func (s *ReasoningState) Terminated() bool {
	return s.terminated
}

// TerminationReason returns the outcome code, or "" while the session is
// still running.
func (s *ReasoningState) TerminationReason() TerminationReason {
	return s.reason
}

// FinalAnswer returns the answer, or "" while the session is still running.
func (s *ReasoningState) FinalAnswer() string {
	return s.finalAnswer
}

// UpdateContext replaces the working set. Ignored after termination.
func (s *ReasoningState) UpdateContext(candidates []Candidate) {
	if s.terminated {
		return
	}
	s.Context = candidates
}

// AddHypothesis appends a non-empty working hypothesis.
func (s *ReasoningState) AddHypothesis(hypothesis string) {
	if hypothesis == "" || s.terminated {
		return
	}
	s.Hypotheses = append(s.Hypotheses, hypothesis)
}

// AddStep appends a diagnostic step record.
func (s *ReasoningState) AddStep(step Step) {
	s.Steps = append(s.Steps, step)
}

// ContextIDs returns the ids of the current working set, in order. Used for
// dedup bookkeeping during expansion and for logging.
func (s *ReasoningState) ContextIDs() []string {
	ids := make([]string, 0, len(s.Context))
	for _, c := range s.Context {
		ids = append(ids, c.ID)
	}
	return ids
}
