package messenger

import (
	"context"
	"fmt"
	"time"

	"courier/internal/utils/text"
)

const AliasDiscord = "discord"

const (
	// Discord caps webhook message content at 2000 characters.
	maxDiscordContentLength = 2000
	truncationSuffix        = "..."
)

// DiscordConfig contains configuration for Discord webhook delivery.
type DiscordConfig struct {
	// WebhookURL is the Discord webhook URL (includes the token).
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls.
	Timeout time.Duration
}

// Discord delivers compiled message bodies to a Discord webhook.
type Discord struct {
	config  DiscordConfig
	webhook *webhookClient
}

// NewDiscord creates a Discord messenger. The rate limiter follows the
// Discord webhook limit of 30 requests per minute.
func NewDiscord(config DiscordConfig) *Discord {
	return &Discord{
		config:  config,
		webhook: newWebhookClient(AliasDiscord, config.Timeout, NewRateLimiter(0.5, 3)),
	}
}

type discordPayload struct {
	Content string `json:"content"`
}

func (d *Discord) Alias() string { return AliasDiscord }

func (d *Discord) Title() string { return "Discord" }

func (d *Discord) AllowUserSubscription() bool { return true }

func (d *Discord) Address(to any) string {
	return AddressOf(AliasDiscord, to)
}

func (d *Discord) BeforeSend(ctx context.Context) error {
	if d.config.WebhookURL == "" {
		return &WarmupError{Messenger: AliasDiscord, Err: fmt.Errorf("webhook URL is not configured")}
	}
	return nil
}

func (d *Discord) AfterSend(ctx context.Context) error { return nil }

func (d *Discord) BuildPayload(content, address string) (any, error) {
	return discordPayload{Content: text.Truncate(content, maxDiscordContentLength, truncationSuffix)}, nil
}

func (d *Discord) Transmit(ctx context.Context, payload any) error {
	_, err := d.webhook.postJSON(ctx, d.config.WebhookURL, payload)
	return err
}

func (d *Discord) Send(ctx context.Context, batch *Batch, out *Outcomes) error {
	SendEach(ctx, d, batch, out)
	return nil
}

func (d *Discord) SendTest(ctx context.Context, to, content string) error {
	payload, err := d.BuildPayload(content, to)
	if err != nil {
		return err
	}
	return d.Transmit(ctx, payload)
}
