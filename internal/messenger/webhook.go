package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"courier/internal/resilience/circuitbreaker"

	"github.com/sony/gobreaker"
)

const maxResponseBody = 1 * 1024 * 1024 // 1MB

// webhookClient is the shared HTTP plumbing of the webhook-style messengers:
// token-bucket rate limiting, a circuit breaker around the service, typed
// status classification and a single in-call wait on a 429 back-off hint.
//
// Deliberately no generic retry loop here. A failed delivery is marked Error
// and re-claimed by a later send pass, which is the retry mechanism of the
// dispatch lifecycle.
type webhookClient struct {
	service string
	client  *http.Client
	limiter *RateLimiter
	breaker *circuitbreaker.CircuitBreaker
}

func newWebhookClient(service string, timeout time.Duration, limiter *RateLimiter) *webhookClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &webhookClient{
		service: service,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		breaker: circuitbreaker.New(circuitbreaker.WebhookConfig(service)),
	}
}

// postJSON delivers one JSON payload. On a 429 it waits out the advertised
// back-off once and retries; every other failure is returned to the caller
// for outcome marking.
func (w *webhookClient) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal payload: %w", w.service, err)
	}

	body, err := w.postOnce(ctx, url, raw)
	if err == nil {
		return body, nil
	}

	if rateLimitErr, ok := asRateLimit(err); ok {
		slog.Warn("messenger rate limit hit, backing off",
			slog.String("service", w.service),
			slog.Duration("retry_after", rateLimitErr.RetryAfter))

		select {
		case <-time.After(rateLimitErr.RetryAfter):
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: rate limit backoff: %w", w.service, ctx.Err())
		}

		return w.postOnce(ctx, url, raw)
	}

	return nil, err
}

func (w *webhookClient) postOnce(ctx context.Context, url string, raw []byte) ([]byte, error) {
	if err := w.limiter.Allow(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", w.service, err)
	}

	result, err := w.breaker.Execute(func() (interface{}, error) {
		return w.do(ctx, url, raw)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("messenger circuit breaker open, request rejected",
				slog.String("service", w.service),
				slog.String("state", w.breaker.State().String()))
		}
		return nil, err
	}

	return result.([]byte), nil
}

func (w *webhookClient) do(ctx context.Context, url string, raw []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", w.service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: execute request: %w", w.service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if err := classifyResponse(w.service, resp, body); err != nil {
		return nil, err
	}

	return body, nil
}
