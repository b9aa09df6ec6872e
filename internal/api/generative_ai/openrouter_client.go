package generativeAI

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

var _ Completer = (*OpenRouterClient)(nil)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel             = "google/gemini-2.0-flash-001"
	DefaultSiteURL           = "http://localhost:3333"
	DefaultSiteName          = "TravelMate AI"
	defaultImageQuestion     = "What is in this image?"
)

// OpenRouterConfig is the static configuration of an OpenRouterClient.
type OpenRouterConfig struct {
	BaseURL           string
	APIKey            string
	SiteURL           string
	SiteName          string
	DefaultModel      string
	Retry             RetryPolicy
	RequestsPerSecond float64
}

// OpenRouterClient talks to an OpenAI compatible chat completions endpoint.
type OpenRouterClient struct {
	client       *openai.Client
	defaultModel string
	retry        *retrier
	logger       *slog.Logger
}

// OpenRouterOption customises an OpenRouterClient.
type OpenRouterOption func(*openRouterOptions)

type openRouterOptions struct {
	httpClient *http.Client
	sleep      SleepFunc
}

// WithHTTPClient sets the underlying HTTP client. Its Transport is wrapped to
// add the identifying headers.
func WithHTTPClient(c *http.Client) OpenRouterOption {
	return func(o *openRouterOptions) { o.httpClient = c }
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) OpenRouterOption {
	return func(o *openRouterOptions) { o.sleep = fn }
}

// NewOpenRouterClient builds a client from cfg, filling unset fields with defaults.
func NewOpenRouterClient(cfg OpenRouterConfig, logger *slog.Logger, opts ...OpenRouterOption) *OpenRouterClient {
	o := openRouterOptions{httpClient: &http.Client{}, sleep: sleepContext}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterBaseURL
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = DefaultSiteURL
	}
	if cfg.SiteName == "" {
		cfg.SiteName = DefaultSiteName
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}

	hc := *o.httpClient
	hc.Transport = &headerTransport{
		base: o.httpClient.Transport,
		headers: map[string]string{
			"HTTP-Referer": cfg.SiteURL,
			"X-Title":      cfg.SiteName,
		},
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &hc

	return &OpenRouterClient{
		client:       openai.NewClientWithConfig(oc),
		defaultModel: cfg.DefaultModel,
		retry: &retrier{
			policy:   cfg.Retry,
			limiter:  newLimiter(cfg.RequestsPerSecond),
			sleep:    o.sleep,
			logger:   logger,
			provider: "openrouter",
		},
		logger: logger,
	}
}

// Complete sends prompt as a single user text message.
func (c *OpenRouterClient) Complete(ctx context.Context, prompt, model string, temperature float32) (*Completion, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	return c.chat(ctx, "Complete", parts, model, temperature)
}

// AnalyzeImage asks question about the image at imageURL.
func (c *OpenRouterClient) AnalyzeImage(ctx context.Context, imageURL, question, model string) (*Completion, error) {
	if question == "" {
		question = defaultImageQuestion
	}
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: question},
		{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
	}
	return c.chat(ctx, "AnalyzeImage", parts, model, 0)
}

// HealthCheck reports whether the provider answers a trivial prompt.
func (c *OpenRouterClient) HealthCheck(ctx context.Context) bool {
	res, err := c.Complete(ctx, "Hello", "", 0.1)
	if err != nil {
		c.logger.WarnContext(ctx, "Completion provider health check failed", slog.Any("error", err))
		return false
	}
	return res.Content != ""
}

func (c *OpenRouterClient) chat(ctx context.Context, op string, parts []openai.ChatMessagePart, model string, temperature float32) (*Completion, error) {
	if model == "" {
		model = c.defaultModel
	}
	ctx, span := otel.Tracer("OpenRouterClient").Start(ctx, op, trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Float64("llm.temperature", float64(temperature)),
	))
	defer span.End()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		Temperature: temperature,
	}

	res, err := c.retry.do(ctx, func(ctx context.Context, attempt int) (*Completion, error) {
		span.AddEvent("attempt", trace.WithAttributes(attribute.Int("attempt", attempt)))
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, classifyOpenAIError(err)
		}
		return toCompletion(resp)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("llm.response.id", res.ID),
		attribute.Int("llm.usage.total_tokens", res.Usage.TotalTokens),
	)
	span.SetStatus(codes.Ok, "completion succeeded")
	return res, nil
}

func toCompletion(resp openai.ChatCompletionResponse) (*Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, types.NewProtocolError("provider response contained no choices", 0, nil)
	}
	choice := resp.Choices[0]
	return &Completion{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		ID:           resp.ID,
		Model:        resp.Model,
		CreatedAt:    time.Unix(resp.Created, 0).UTC(),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// classifyOpenAIError maps go-openai errors onto the error taxonomy.
// RequestError is checked first: it may wrap a partially decoded APIError.
func classifyOpenAIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return types.NewProtocolError(
			fmt.Sprintf("provider returned status %d with an unrecognised body", reqErr.HTTPStatusCode),
			reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Type != "" {
			msg = fmt.Sprintf("%s (%s)", apiErr.Message, apiErr.Type)
		}
		return types.NewUpstreamError(msg, apiErr.HTTPStatusCode, err)
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

// headerTransport adds fixed headers to every outbound request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}
