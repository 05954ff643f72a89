package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"courier/internal/resilience/circuitbreaker"
	"courier/internal/resilience/retry"
	"courier/internal/utils/text"
)

const AliasTelegram = "telegram"

const telegramAPIBase = "https://api.telegram.org"

// The Bot API rejects sendMessage calls whose text exceeds 4096 characters.
const maxTelegramTextLength = 4096

// TelegramConfig contains configuration for Telegram Bot API delivery.
type TelegramConfig struct {
	// Token is the bot authentication token issued by BotFather.
	Token string

	// Timeout is the HTTP request timeout for Bot API calls.
	Timeout time.Duration

	// APIBaseURL overrides the Bot API host. Empty means the public API.
	APIBaseURL string
}

// Telegram delivers compiled message bodies through the Telegram Bot API.
// The dispatch address is a chat id, collectable via GetChatIDs once users
// have sent /start to the bot.
type Telegram struct {
	config  TelegramConfig
	client  *http.Client
	limiter *RateLimiter
	breaker *circuitbreaker.CircuitBreaker

	verified bool
}

// NewTelegram creates a Telegram messenger. The rate limiter follows the
// Bot API guidance of at most 30 messages per second overall.
func NewTelegram(config TelegramConfig) *Telegram {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Telegram{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		limiter: NewRateLimiter(30.0, 5),
		breaker: circuitbreaker.New(circuitbreaker.TelegramAPIConfig()),
	}
}

// TelegramAPIError is an API-level rejection: the HTTP exchange succeeded
// but the envelope carried ok=false.
type TelegramAPIError struct {
	Description string
}

func (e *TelegramAPIError) Error() string {
	return fmt.Sprintf("telegram api: %s", e.Description)
}

// ChatIDer yields the Telegram chat id of a recipient value directly.
type ChatIDer interface {
	TelegramChatID() string
}

func (t *Telegram) Alias() string { return AliasTelegram }

func (t *Telegram) Title() string { return "Telegram" }

func (t *Telegram) AllowUserSubscription() bool { return true }

func (t *Telegram) Address(to any) string {
	if c, ok := to.(ChatIDer); ok {
		if id := c.TelegramChatID(); id != "" {
			return id
		}
	}
	return AddressOf(AliasTelegram, to)
}

// BeforeSend verifies the bot token with a getMe call. Verification is done
// once per messenger instance.
func (t *Telegram) BeforeSend(ctx context.Context) error {
	if t.verified {
		return nil
	}

	if _, err := t.command(ctx, "getMe", nil); err != nil {
		return &WarmupError{Messenger: AliasTelegram, Err: err}
	}

	t.verified = true
	return nil
}

func (t *Telegram) AfterSend(ctx context.Context) error { return nil }

type telegramOutgoing struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *Telegram) BuildPayload(content, address string) (any, error) {
	return telegramOutgoing{
		ChatID: address,
		Text:   text.Truncate(content, maxTelegramTextLength, truncationSuffix),
	}, nil
}

func (t *Telegram) Transmit(ctx context.Context, payload any) error {
	_, err := t.command(ctx, "sendMessage", payload)
	return err
}

func (t *Telegram) Send(ctx context.Context, batch *Batch, out *Outcomes) error {
	// Without a verified token there is nothing to try; the warm-up failure
	// already marked the group.
	if !t.verified {
		return nil
	}

	SendEach(ctx, t, batch, out)
	return nil
}

func (t *Telegram) SendTest(ctx context.Context, to, content string) error {
	payload, err := t.BuildPayload(content, to)
	if err != nil {
		return err
	}
	return t.Transmit(ctx, payload)
}

// TelegramUpdate is one incoming Bot API event.
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramInbound `json:"message"`
}

// TelegramInbound is the message part of an update.
type TelegramInbound struct {
	Text string       `json:"text"`
	Chat TelegramChat `json:"chat"`
}

type TelegramChat struct {
	ID int64 `json:"id"`
}

// GetUpdates polls new messages addressed to the bot, inside the usual
// warm-up/cool-down cycle. Transient API failures are retried in place:
// unlike delivery, polling has no later pass to fall back on.
func (t *Telegram) GetUpdates(ctx context.Context) ([]TelegramUpdate, error) {
	if err := t.BeforeSend(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = t.AfterSend(ctx) }()

	var updates []TelegramUpdate

	err := retry.WithBackoff(ctx, retry.BotAPIConfig(), func() error {
		result, err := t.command(ctx, "getUpdates", nil)
		if err != nil {
			return asRetryable(err)
		}

		updates = updates[:0]
		if err := json.Unmarshal(result, &updates); err != nil {
			return fmt.Errorf("decode updates: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updates, nil
}

// GetChatIDs collects the distinct chat ids of users who sent /start to the
// bot. Those ids are valid dispatch addresses for this messenger.
func (t *Telegram) GetChatIDs(ctx context.Context) ([]int64, error) {
	updates, err := t.GetUpdates(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var chatIDs []int64

	for _, update := range updates {
		if update.Message == nil || update.Message.Text != "/start" {
			continue
		}

		id := update.Message.Chat.ID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		chatIDs = append(chatIDs, id)
	}

	return chatIDs, nil
}

// command performs one Bot API call and unwraps the response envelope.
func (t *Telegram) command(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	if err := t.limiter.Allow(ctx); err != nil {
		return nil, fmt.Errorf("telegram: rate limiter: %w", err)
	}

	result, err := t.breaker.Execute(func() (interface{}, error) {
		return t.post(ctx, method, payload)
	})
	if err != nil {
		return nil, err
	}

	return result.(json.RawMessage), nil
}

func (t *Telegram) post(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("telegram: marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL(method), body)
	if err != nil {
		return nil, fmt.Errorf("telegram: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}

	// The envelope carries a better error description than the raw body, so
	// decode it before status classification when possible.
	if err := json.Unmarshal(raw, &envelope); err == nil && !envelope.OK {
		detail := envelope.Description
		if detail == "" {
			detail = string(raw)
		}
		if err := classifyResponse(AliasTelegram, resp, []byte(detail)); err != nil {
			return nil, err
		}
		return nil, &TelegramAPIError{Description: detail}
	}

	if err := classifyResponse(AliasTelegram, resp, raw); err != nil {
		return nil, err
	}

	return envelope.Result, nil
}

func (t *Telegram) methodURL(method string) string {
	base := t.config.APIBaseURL
	if base == "" {
		base = telegramAPIBase
	}
	return fmt.Sprintf("%s/bot%s/%s", base, t.config.Token, method)
}

// asRetryable converts the typed API errors into the retry package's HTTP
// error so WithBackoff can tell transient statuses from permanent ones.
func asRetryable(err error) error {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return &retry.HTTPError{StatusCode: serverErr.StatusCode, Message: serverErr.Message}
	}

	if rateLimitErr, ok := asRateLimit(err); ok {
		return &retry.HTTPError{StatusCode: http.StatusTooManyRequests, Message: rateLimitErr.Error()}
	}

	return err
}
