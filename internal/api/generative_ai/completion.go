package generativeAI

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/go-itinerary-ai/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-ai/internal/types"
)

// Usage reports the provider's token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Completion is the first choice of a successful completion call.
type Completion struct {
	Content      string    `json:"content"`
	Usage        Usage     `json:"usage"`
	FinishReason string    `json:"finishReason"`
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Completer issues a single chat completion. Implementations own retries and
// return *types.Error of kind transport, upstream or protocol.
type Completer interface {
	Complete(ctx context.Context, prompt, model string, temperature float32) (*Completion, error)
}

// RetryPolicy bounds the attempts of one Complete call. The delay before
// attempt n+1 is BaseDelay*n.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// AttemptTimeout caps every single attempt. Zero disables it.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is three attempts, one second apart then two, thirty seconds each.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	BaseDelay:      time.Second,
	AttemptTimeout: 30 * time.Second,
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type attemptFunc func(ctx context.Context, attempt int) (*Completion, error)

// retrier runs attempts sequentially under a RetryPolicy.
type retrier struct {
	policy   RetryPolicy
	limiter  *rate.Limiter
	sleep    SleepFunc
	logger   *slog.Logger
	provider string
}

func (r *retrier) do(ctx context.Context, op attemptFunc) (*Completion, error) {
	l := r.logger.With(slog.String("method", "retry"), slog.String("provider", r.provider))
	m := metrics.Get()

	maxAttempts := r.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, types.NewTransportError("rate limiter wait aborted", err)
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.policy.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
		}
		start := time.Now()
		res, err := op(attemptCtx, attempt)
		cancel()

		outcome := "success"
		if err != nil {
			outcome = string(types.KindOf(err))
		}
		attrs := metric.WithAttributes(
			attribute.String("provider", r.provider),
			attribute.String("outcome", outcome),
		)
		m.CompletionAttemptsTotal.Add(ctx, 1, attrs)
		m.CompletionDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)

		if err == nil {
			if attempt > 1 {
				l.InfoContext(ctx, "Completion succeeded after retry", slog.Int("attempt", attempt))
			}
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, types.NewTransportError("request cancelled", ctx.Err())
		}
		if attempt == maxAttempts {
			break
		}

		wait := r.policy.delay(attempt)
		l.WarnContext(ctx, "Completion attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("wait_duration", wait),
			slog.String("kind", outcome),
			slog.Any("error", err),
		)
		if err := r.sleep(ctx, wait); err != nil {
			return nil, types.NewTransportError("request cancelled while waiting to retry", err)
		}
	}

	l.ErrorContext(ctx, "Completion failed after all attempts",
		slog.Int("max_attempts", maxAttempts),
		slog.Any("error", lastErr),
	)
	return nil, lastErr
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}
