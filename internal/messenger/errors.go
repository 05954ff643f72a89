package messenger

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Typed errors shared by the HTTP-backed messengers. The orchestrator does
// not inspect them; messengers use them to decide between Error (transient,
// retried next pass) and Failed (permanent) when marking outcomes.

// RateLimitError represents a 429 response from a messenger API.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a non-429 4xx response: the request itself is
// rejected and retrying the same dispatch cannot succeed.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx response.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// asRateLimit extracts a rate limit error, if that is what err is.
func asRateLimit(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// IsPermanent reports whether a delivery error cannot succeed on a later
// attempt. Permanent errors go straight to the Failed bucket; everything
// else is marked Error and re-claimed next pass.
func IsPermanent(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr)
}

// classifyResponse maps an API response onto the typed errors above.
// 2xx is success, 429 carries a retry-after hint, other 4xx are permanent,
// 5xx are transient.
func classifyResponse(service string, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    fmt.Sprintf("%s rate limit exceeded", service),
			RetryAfter: extractRetryAfter(resp, body),
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s client error %d: %s", service, resp.StatusCode, string(body)),
		}

	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s server error %d: %s", service, resp.StatusCode, string(body)),
		}
	}

	return fmt.Errorf("%s unexpected status %d: %s", service, resp.StatusCode, string(body))
}

const defaultRetryAfter = 5 * time.Second

// extractRetryAfter reads the back-off hint of a 429 response, trying the
// JSON body (Discord style, seconds as a float) before the Retry-After
// header.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var parsed struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.RetryAfter > 0 {
		return time.Duration(parsed.RetryAfter * float64(time.Second))
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return defaultRetryAfter
}
