// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"regexp"
	"strings"
)

// =============================================================================
// LLM Response Parsing
// =============================================================================

// Action values a parsed response can carry.
const (
	// ActionAnswer means the model reported a final answer.
	ActionAnswer = "answer"

	// ActionExpand means the model wants more context.
	ActionExpand = "expand"
)

// ParsedResponse is the normalized outcome of one think-phase response.
//
// Parsing never fails: a response the parser cannot make sense of comes back
// as an expand action with no hypothesis, and the loop continues. Malformed
// model output must never crash a session.
type ParsedResponse struct {
	// Hypothesis is the model's working hypothesis, possibly empty.
	Hypothesis string

	// Action is ActionAnswer or ActionExpand.
	Action string

	// Answer is the extracted answer text when Action is ActionAnswer.
	Answer string

	// ExpansionTarget hints which relation to follow next (advisory only).
	ExpansionTarget string

	// Raw is the unmodified model response, kept for the diagnostic trail.
	Raw string
}

var answerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:the\s+)?answer\s+is\s+(.+?)(?:\.|$)`),
	regexp.MustCompile(`(?i)(?:it\s+is|it's)\s+(.+?)(?:\.|$)`),
	regexp.MustCompile(`(?i)therefore,?\s+(.+?)(?:\.|$)`),
	regexp.MustCompile(`(?i)thus,?\s+(.+?)(?:\.|$)`),
}

var quotedPattern = regexp.MustCompile(`"([^"]+)"`)

var expandIndicators = []string{
	"need to", "should", "must", "require", "missing",
	"don't know", "unclear", "not sure", "expand", "explore",
}

// relationKeywords maps an expansion target to phrases that suggest it.
// Ordered so repeated parses of the same response give the same target.
var relationKeywords = []struct {
	relation string
	keywords []string
}{
	{"director", []string{"director", "directed by", "filmmaker"}},
	{"actor", []string{"actor", "starred", "cast", "starring"}},
	{"spouse", []string{"spouse", "married", "wife", "husband"}},
	{"genre", []string{"genre", "type of", "category"}},
	{"year", []string{"year", "date", "when", "time"}},
}

// ParseResponse interprets one LLM response from the think phase.
//
// Description:
//
//	Tries the structured HYPOTHESIS/ACTION format first. If the response is
//	free-form, falls back to answer-indicator patterns, then quoted
//	entities, then keyword heuristics for the expansion target. The default
//	outcome is an expand action: when in doubt, keep searching.
//
// Inputs:
//
//	response - The raw model output.
//
// Outputs:
//
//	ParsedResponse - Never nil-equivalent; Action is always set.
func ParseResponse(response string) ParsedResponse {
	result := ParsedResponse{
		Action:          ActionExpand,
		ExpansionTarget: "generic",
		Raw:             response,
	}

	if structured, ok := parseStructured(response); ok {
		structured.Raw = response
		return structured
	}

	if answer := extractAnswer(response); answer != "" {
		result.Action = ActionAnswer
		result.Answer = answer
		result.Hypothesis = "Found answer: " + answer
		return result
	}

	result.Hypothesis = extractHypothesis(response)

	lower := strings.ToLower(response)
	for _, indicator := range expandIndicators {
		if strings.Contains(lower, indicator) {
			result.ExpansionTarget = extractExpansionTarget(lower)
			break
		}
	}
	return result
}

// parseStructured handles the strict line-oriented format the think prompt
// asks for. Returns ok=false when no structured marker is present.
func parseStructured(response string) (ParsedResponse, bool) {
	result := ParsedResponse{
		Action:          ActionExpand,
		ExpansionTarget: "generic",
	}
	found := false

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)

		if rest, ok := strings.CutPrefix(line, "HYPOTHESIS:"); ok {
			result.Hypothesis = strings.TrimSpace(rest)
			found = true
		}
		if rest, ok := strings.CutPrefix(line, "ACTION:"); ok {
			action := strings.TrimSpace(rest)
			if strings.Contains(action, "ANSWER_FOUND") {
				result.Action = ActionAnswer
				if _, answer, ok := strings.Cut(action, ":"); ok {
					result.Answer = strings.TrimSpace(answer)
				}
			} else if _, target, ok := strings.Cut(action, "EXPAND:"); ok {
				result.ExpansionTarget = strings.TrimSpace(target)
			}
			found = true
		}
		if rest, ok := strings.CutPrefix(line, "ANSWER_FOUND:"); ok {
			result.Action = ActionAnswer
			result.Answer = strings.TrimSpace(rest)
			found = true
		}
	}
	return result, found
}

// extractAnswer pulls a direct answer out of free-form text, preserving the
// original casing of the matched span.
func extractAnswer(response string) string {
	for _, pattern := range answerPatterns {
		if loc := pattern.FindStringSubmatchIndex(response); loc != nil {
			return strings.TrimSpace(response[loc[2]:loc[3]])
		}
	}
	if m := quotedPattern.FindStringSubmatch(response); m != nil {
		return m[1]
	}
	return ""
}

// extractHypothesis takes the first two sentences as the working hypothesis.
func extractHypothesis(response string) string {
	parts := strings.SplitN(response, ".", 3)
	if len(parts) >= 2 {
		first := strings.TrimSpace(parts[0])
		second := strings.TrimSpace(parts[1])
		switch {
		case first != "" && second != "":
			return first + ". " + second + "."
		case first != "":
			return first + "."
		}
	}
	if len(response) > 200 {
		return response[:200]
	}
	return response
}

func extractExpansionTarget(lowerResponse string) string {
	for _, entry := range relationKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lowerResponse, kw) {
				return entry.relation
			}
		}
	}
	return "generic"
}
