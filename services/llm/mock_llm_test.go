package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_ExpandsThenAnswersDirectorLookup(t *testing.T) {
	client := NewMockClient()

	// First hop: the film is in context but the director is not yet.
	out, err := client.Generate(context.Background(), "Question: Who directed Inception?\nContext: Inception, a 2010 film.", GenerationParams{})
	require.NoError(t, err)
	assert.Contains(t, out, "ACTION: EXPAND: director")

	// Second hop: the director entity arrived via graph expansion.
	out, err = client.Generate(context.Background(), "Question: Who directed Inception?\nContext: Inception; Christopher Nolan.", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ANSWER_FOUND: Christopher Nolan", out)
}

func TestMockClient_UnknownPromptKeepsExpanding(t *testing.T) {
	client := NewMockClient()

	out, err := client.Generate(context.Background(), "Question: What is the capital of France?", GenerationParams{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "ACTION: EXPAND"))
}

func TestMockClient_RespectsCancelledContext(t *testing.T) {
	client := NewMockClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "anything", GenerationParams{})
	assert.ErrorIs(t, err, context.Canceled)
}
