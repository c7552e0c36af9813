// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"
	"strings"

	"github.com/crag-labs/crag/services/agent/datatypes"
)

// maxPromptEntities bounds how much of the working set the think prompt
// shows. The context is already sorted by score, so the head is the most
// relevant slice.
const maxPromptEntities = 5

// maxEntityDescription truncates each entity description in the prompt.
const maxEntityDescription = 50

// buildThinkPrompt renders the think-phase prompt from the query, the top of
// the current working set, and the accumulated hypotheses.
func buildThinkPrompt(query string, context []datatypes.Candidate, hypotheses []string) string {
	var sb strings.Builder

	sb.WriteString("You are a Knowledge Graph Reasoning Agent.\n")
	fmt.Fprintf(&sb, "Query: %s\n\n", query)

	sb.WriteString("Current known entities:\n")
	for i, c := range context {
		if i >= maxPromptEntities {
			break
		}
		desc := c.Description
		if len(desc) > maxEntityDescription {
			desc = desc[:maxEntityDescription]
		}
		fmt.Fprintf(&sb, "- %s (%s)\n", c.Name, desc)
	}

	sb.WriteString("\nPrevious Hypotheses:\n")
	if len(hypotheses) == 0 {
		sb.WriteString("- none\n")
	}
	for _, h := range hypotheses {
		fmt.Fprintf(&sb, "- %s\n", h)
	}

	sb.WriteString(`
Task: Analyze and determine next step.
Format:
HYPOTHESIS: <working hypothesis>
MISSING: <missing info>
ACTION: <ANSWER_FOUND: answer | EXPAND: relation/entity>
`)
	return sb.String()
}
