package generativeAI

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

func TestGeminiCompletion(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		ResponseID:   "resp-1",
		ModelVersion: "gemini-2.0-flash-001",
		CreateTime:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600)),
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: `{"summary":"ok"}`}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 5,
			TotalTokenCount:      15,
		},
	}

	c, err := geminiCompletion(resp, "gemini-2.0-flash")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, c.Content)
	assert.Equal(t, "resp-1", c.ID)
	assert.Equal(t, "gemini-2.0-flash-001", c.Model)
	assert.Equal(t, "STOP", c.FinishReason)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), c.CreatedAt)
	assert.Equal(t, Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, c.Usage)
}

func TestGeminiCompletion_NoCandidates(t *testing.T) {
	_, err := geminiCompletion(&genai.GenerateContentResponse{}, "gemini-2.0-flash")
	assert.ErrorIs(t, err, types.ErrProtocol)

	_, err = geminiCompletion(nil, "gemini-2.0-flash")
	assert.ErrorIs(t, err, types.ErrProtocol)
}

func TestGeminiCompletion_MissingCreateTime(t *testing.T) {
	before := time.Now().UTC()
	c, err := geminiCompletion(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "{}"}}}}},
	}, "gemini-2.0-flash")
	require.NoError(t, err)
	assert.False(t, c.CreatedAt.Before(before))
	assert.Equal(t, "gemini-2.0-flash", c.Model)
}

func TestClassifyGeminiError(t *testing.T) {
	apiErr := genai.APIError{Code: 429, Message: "Resource has been exhausted", Status: "RESOURCE_EXHAUSTED"}
	err := classifyGeminiError(fmt.Errorf("generate: %w", apiErr))
	require.ErrorIs(t, err, types.ErrUpstream)
	var typed *types.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, 429, typed.StatusCode)
	assert.Equal(t, "Resource has been exhausted", typed.Message)

	var decoded map[string]any
	decodeErr := json.Unmarshal([]byte(`{"candidates": [`), &decoded)
	assert.ErrorIs(t, classifyGeminiError(fmt.Errorf("deserialize response: %w", decodeErr)), types.ErrProtocol)
	typeErr := json.Unmarshal([]byte(`{"candidates": "none"}`), &struct{ Candidates []any }{})
	assert.ErrorIs(t, classifyGeminiError(typeErr), types.ErrProtocol)

	assert.ErrorIs(t, classifyGeminiError(context.DeadlineExceeded), types.ErrTransport)
	assert.ErrorIs(t, classifyGeminiError(errors.New("dial tcp: connection refused")), types.ErrTransport)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{}, slog.Default())
	assert.ErrorContains(t, err, "api key")
}
