package llm

import (
	"context"
	"strings"
)

// MockClient is a deterministic LLMClient for tests and the offline demo.
//
// It pattern-matches the prompt and replies in the structured think-phase
// format, so the full reasoning loop can run without a model backend. The
// canned behaviors cover the demo corpus: film director lookups resolve in
// two hops, everything else keeps expanding.
type MockClient struct{}

// NewMockClient creates the canned client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate implements the LLMClient interface.
func (MockClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	promptLower := strings.ToLower(prompt)

	if strings.Contains(promptLower, "inception") {
		if strings.Contains(promptLower, "christopher nolan") {
			return "ANSWER_FOUND: Christopher Nolan", nil
		}
		return "HYPOTHESIS: The director is likely connected to the movie entity.\nMISSING: Director relation.\nACTION: EXPAND: director", nil
	}

	if strings.Contains(promptLower, "tom hanks") {
		if strings.Contains(promptLower, "forrest gump") {
			return "ANSWER_FOUND: Forrest Gump", nil
		}
		return "HYPOTHESIS: Movies starred in are connected via 'starring' or 'cast' relations.\nMISSING: Movie list.\nACTION: EXPAND: cast/starring", nil
	}

	if strings.Contains(promptLower, "spouse") {
		return "HYPOTHESIS: Spouse info needed.\nACTION: EXPAND: spouse", nil
	}

	return "HYPOTHESIS: Need more info.\nACTION: EXPAND: generic", nil
}
