// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent implements the cognitive reasoning loop: a bounded
// think-act-observe controller that answers multi-hop questions by
// iteratively expanding a retrieval frontier instead of retrieving once.
//
// One Solve call moves through initial retrieval, pruning, and up to
// MaxHops reasoning hops. Each hop asks the language model for a hypothesis
// (think), expands the graph frontier if no answer was found (act), and
// reranks the union of old and new candidates down to the working-set size
// (observe). Every session ends in exactly one termination reason with a
// non-empty answer; backend failures resolve into a terminal state rather
// than escaping, while cancellation always propagates to the caller.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/crag-labs/crag/services/agent/datatypes"
	"github.com/crag-labs/crag/services/llm"
	"github.com/crag-labs/crag/services/retrieval"
)

var agentTracer = otel.Tracer("crag.agent.cognitive")

// maxQueryLength bounds accepted query size.
const maxQueryLength = 1000

// initialRetrievalK is how many candidates the hybrid retriever gathers
// before the first pruning pass.
const initialRetrievalK = 10

// thinkParams are the generation settings for the think phase. Low
// temperature keeps the structured format parseable.
var thinkParams = llm.GenerationParams{
	Temperature: ptr(float32(0.2)),
	MaxTokens:   ptr(512),
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// Cognitive Agent
// =============================================================================

// CognitiveAgent orchestrates one reasoning session per Solve call.
//
// # Description
//
// The agent owns no cross-session state: every Solve call creates its own
// ReasoningState, so independent queries can run concurrently as long as the
// collaborators (retriever, reranker, LLM) are themselves safe for
// concurrent use.
//
// # Thread Safety
//
// Safe for concurrent Solve calls under the collaborator contract above.
type CognitiveAgent struct {
	hrm      *retrieval.HybridRetrievalModule
	reranker *retrieval.RerankerAdapter
	llm      llm.LLMClient
	config   datatypes.AgentConfig
	logger   *slog.Logger
}

// NewCognitiveAgent creates the agent.
//
// Inputs:
//
//	hrm - The hybrid retrieval module. Must not be nil.
//	reranker - The pruning adapter. Must not be nil.
//	llmClient - The reasoning model client. Must not be nil.
//	config - Tuning knobs; validated and clamped here.
//	logger - Structured logger; nil uses slog.Default().
//
// Outputs:
//
//	*CognitiveAgent - The agent.
//	error - *datatypes.ConfigurationError for out-of-range knobs, or a
//	plain error for a nil collaborator.
func NewCognitiveAgent(
	hrm *retrieval.HybridRetrievalModule,
	reranker *retrieval.RerankerAdapter,
	llmClient llm.LLMClient,
	config datatypes.AgentConfig,
	logger *slog.Logger,
) (*CognitiveAgent, error) {
	if hrm == nil {
		return nil, fmt.Errorf("hrm must not be nil")
	}
	if reranker == nil {
		return nil, fmt.Errorf("reranker must not be nil")
	}
	if llmClient == nil {
		return nil, fmt.Errorf("llmClient must not be nil")
	}
	validated, err := config.Validate()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("cognitive agent initialized",
		"max_hops", validated.MaxHops,
		"max_expansions", validated.MaxExpansions,
		"rerank_top_k", validated.RerankTopK,
		"use_reranker", validated.UseReranker)

	return &CognitiveAgent{
		hrm:      hrm,
		reranker: reranker,
		llm:      llmClient,
		config:   validated,
		logger:   logger,
	}, nil
}

// Config returns the validated configuration the agent runs with.
func (a *CognitiveAgent) Config() datatypes.AgentConfig {
	return a.config
}

// Solve runs the full reasoning loop for one query.
//
// Description:
//
//	Validates the query, gathers and prunes initial candidates, then runs
//	up to MaxHops think-act-observe hops. The returned state is always
//	terminal: it carries exactly one termination reason and a non-empty
//	answer. Domain outcomes (no candidates, exhausted context, budget
//	spent) and backend failures all resolve into the terminal state.
//
//	The two error paths out of Solve are malformed input (empty or
//	oversized query, rejected before any state exists) and cancellation of
//	ctx, which is re-raised so a caller running many sessions observes a
//	genuine interrupt instead of a per-query failure.
//
// Inputs:
//
//	ctx - Context for cancellation; checked at every hop boundary.
//	query - The question. Must be non-blank and at most 1000 characters.
//
// Outputs:
//
//	*datatypes.ReasoningState - The terminal session state.
//	error - *InvalidQueryError or a context error; nil otherwise.
func (a *CognitiveAgent) Solve(ctx context.Context, query string) (*datatypes.ReasoningState, error) {
	ctx, span := agentTracer.Start(ctx, "CognitiveAgent.Solve")
	defer span.End()

	if err := validateQuery(query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query rejected")
		return nil, err
	}
	span.SetAttributes(attribute.Int("agent.query_length", len(query)))

	state := datatypes.NewReasoningState(query)

	candidates, err := a.retrieveAndPrune(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if retrieval.IsNoInitialCandidates(err) {
			a.logger.Info("no initial candidates", "query", query)
			state.Terminate(datatypes.TerminationNoInitialCandidates, "")
			return a.finish(span, state), nil
		}
		return a.terminateBackend(span, state, "retrieve", err), nil
	}

	state.UpdateContext(candidates)
	state.AddStep(datatypes.Step{
		N:              0,
		Action:         "initial_retrieval",
		Thought:        "Starting search.",
		CandidateCount: len(candidates),
	})

	for hop := 1; hop <= a.config.MaxHops; hop++ {
		// Hop boundary: a cancelled session never starts another hop.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(state.Context) == 0 {
			state.Terminate(datatypes.TerminationExhaustedContext, "")
			return a.finish(span, state), nil
		}
		state.HopCount = hop

		parsed, err := a.think(ctx, query, state)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return a.terminateBackend(span, state, "think", err), nil
		}
		state.AddHypothesis(parsed.Hypothesis)

		if parsed.Action == ActionAnswer {
			state.Terminate(datatypes.TerminationSuccess, parsed.Answer)
			state.AddStep(datatypes.Step{N: hop, Action: "terminate", Thought: parsed.Raw})
			return a.finish(span, state), nil
		}

		expanded, err := a.expand(ctx, state.Context)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return a.terminateBackend(span, state, "expand", err), nil
		}
		if len(expanded) == 0 {
			a.logger.Info("frontier exhausted", "hop", hop, "context_size", len(state.Context))
			state.Terminate(datatypes.TerminationExhaustedContext, "")
			return a.finish(span, state), nil
		}

		pruned, err := a.observe(ctx, query, state.Context, expanded)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return a.terminateBackend(span, state, "rerank", err), nil
		}

		state.UpdateContext(pruned)
		state.AddStep(datatypes.Step{
			N:              hop,
			Action:         "expand",
			Thought:        parsed.Raw,
			CandidateCount: len(pruned),
		})
	}

	state.Terminate(datatypes.TerminationMaxSteps, "")
	return a.finish(span, state), nil
}

// retrieveAndPrune gathers the initial candidate pool and prunes it to the
// working-set size.
func (a *CognitiveAgent) retrieveAndPrune(ctx context.Context, query string) ([]datatypes.Candidate, error) {
	stepCtx, cancel := a.stepContext(ctx)
	defer cancel()

	candidates, err := a.hrm.RetrieveInitial(stepCtx, query, initialRetrievalK)
	if err != nil {
		return nil, err
	}
	return a.reranker.ScoreAndPrune(stepCtx, query, candidates, a.config.RerankTopK)
}

// think runs one LLM reasoning step and parses the result. Only transport
// failures surface as errors; an unparseable response still comes back as a
// valid expand decision.
func (a *CognitiveAgent) think(ctx context.Context, query string, state *datatypes.ReasoningState) (ParsedResponse, error) {
	stepCtx, cancel := a.stepContext(ctx)
	defer cancel()

	prompt := buildThinkPrompt(query, state.Context, state.Hypotheses)
	response, err := a.llm.Generate(stepCtx, prompt, thinkParams)
	if err != nil {
		return ParsedResponse{}, &LLMBackendError{Stage: "think", Cause: err}
	}
	return ParseResponse(response), nil
}

// expand retrieves 1-hop neighbors of the current frontier.
func (a *CognitiveAgent) expand(ctx context.Context, frontier []datatypes.Candidate) ([]datatypes.Candidate, error) {
	stepCtx, cancel := a.stepContext(ctx)
	defer cancel()

	return a.hrm.Expand(stepCtx, frontier, a.config.MaxExpansions)
}

// observe reranks the union of the held context and the newly expanded
// candidates down to the working-set size. Existing candidates come first so
// a stable-sorting scorer keeps their relative order on ties.
func (a *CognitiveAgent) observe(ctx context.Context, query string, held, expanded []datatypes.Candidate) ([]datatypes.Candidate, error) {
	stepCtx, cancel := a.stepContext(ctx)
	defer cancel()

	seen := make(map[string]bool, len(held))
	union := make([]datatypes.Candidate, 0, len(held)+len(expanded))
	for _, c := range held {
		if !seen[c.ID] {
			seen[c.ID] = true
			union = append(union, c)
		}
	}
	for _, c := range expanded {
		if !seen[c.ID] {
			seen[c.ID] = true
			union = append(union, c)
		}
	}
	return a.reranker.ScoreAndPrune(stepCtx, query, union, a.config.RerankTopK)
}

// stepContext derives the per-step context. With a zero StepTimeout the
// parent is used as-is.
func (a *CognitiveAgent) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.StepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.config.StepTimeout)
}

// terminateBackend resolves a collaborator failure into a terminal llm_error
// state and logs the failing stage with full context.
func (a *CognitiveAgent) terminateBackend(span trace.Span, state *datatypes.ReasoningState, stage string, err error) *datatypes.ReasoningState {
	a.logger.Error("backend failure resolved to terminal state",
		"stage", stage,
		"hop", state.HopCount,
		"error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "backend failure during "+stage)
	state.Terminate(datatypes.TerminationLLMError, "")
	return state
}

// finish stamps the terminal outcome onto the span and logs it.
func (a *CognitiveAgent) finish(span trace.Span, state *datatypes.ReasoningState) *datatypes.ReasoningState {
	span.SetAttributes(
		attribute.String("agent.termination_reason", state.TerminationReason().String()),
		attribute.Int("agent.hop_count", state.HopCount),
		attribute.Int("agent.context_size", len(state.Context)),
	)
	a.logger.Info("reasoning session finished",
		"reason", state.TerminationReason().String(),
		"hops", state.HopCount,
		"answer_length", len(state.FinalAnswer()))
	return state
}

// validateQuery rejects blank or oversized input before any session state is
// created.
func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return &InvalidQueryError{Reason: "query cannot be empty"}
	}
	if len(query) > maxQueryLength {
		return &InvalidQueryError{Reason: "query too long (max 1000 chars)"}
	}
	return nil
}
