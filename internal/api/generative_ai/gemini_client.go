package generativeAI

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var _ Completer = (*GeminiClient)(nil)

const DefaultGeminiModel = "gemini-2.0-flash"

type GeminiConfig struct {
	APIKey            string
	DefaultModel      string
	Retry             RetryPolicy
	RequestsPerSecond float64
}

// GeminiClient completes prompts with the Gemini API.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
	retry        *retrier
	logger       *slog.Logger
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultGeminiModel
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	return &GeminiClient{
		client:       client,
		defaultModel: cfg.DefaultModel,
		logger:       logger,
		retry: &retrier{
			policy:   cfg.Retry,
			limiter:  newLimiter(cfg.RequestsPerSecond),
			sleep:    sleepContext,
			logger:   logger,
			provider: "gemini",
		},
	}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, prompt, model string, temperature float32) (*Completion, error) {
	if model == "" {
		model = g.defaultModel
	}
	ctx, span := otel.Tracer("GeminiClient").Start(ctx, "Complete", trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Float64("llm.temperature", float64(temperature)),
	))
	defer span.End()

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](temperature)}

	res, err := g.retry.do(ctx, func(ctx context.Context, attempt int) (*Completion, error) {
		resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		if err != nil {
			return nil, classifyGeminiError(err)
		}
		return geminiCompletion(resp, model)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "completion succeeded")
	return res, nil
}

// HealthCheck reports whether Gemini answers a trivial prompt.
func (g *GeminiClient) HealthCheck(ctx context.Context) bool {
	res, err := g.Complete(ctx, "Hello", "", 0.1)
	if err != nil {
		g.logger.WarnContext(ctx, "Gemini health check failed", slog.Any("error", err))
		return false
	}
	return res.Content != ""
}

func geminiCompletion(resp *genai.GenerateContentResponse, model string) (*Completion, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, types.NewProtocolError("provider response contained no candidates", 0, nil)
	}
	c := &Completion{
		Content:      resp.Text(),
		FinishReason: string(resp.Candidates[0].FinishReason),
		ID:           resp.ResponseID,
		Model:        model,
		CreatedAt:    resp.CreateTime.UTC(),
	}
	if resp.CreateTime.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if resp.ModelVersion != "" {
		c.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		c.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return c, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return types.NewUpstreamError(apiErr.Message, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return types.NewUpstreamError(apiErrPtr.Message, apiErrPtr.Code, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return types.NewProtocolError("provider response could not be decoded", 0, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewTransportError("provider request timed out", err)
	}
	return types.NewTransportError("provider unreachable", err)
}
