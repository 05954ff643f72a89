package messenger

import (
	"context"
	"fmt"
	"time"
)

const AliasSlack = "slack"

// SlackConfig contains configuration for Slack webhook delivery.
type SlackConfig struct {
	// WebhookURL is the Slack Incoming Webhook URL (includes the token).
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls.
	Timeout time.Duration
}

// Slack delivers compiled message bodies to a Slack Incoming Webhook.
//
// The webhook posts into one preconfigured channel, so the dispatch address
// is the channel name it was subscribed under; it is carried for bookkeeping
// but not sent to Slack.
type Slack struct {
	config  SlackConfig
	webhook *webhookClient
}

// NewSlack creates a Slack messenger. The rate limiter follows the Slack
// webhook limit of one message per second.
func NewSlack(config SlackConfig) *Slack {
	return &Slack{
		config:  config,
		webhook: newWebhookClient(AliasSlack, config.Timeout, NewRateLimiter(1.0, 1)),
	}
}

// slackPayload is the minimal webhook body. Compiled messages arrive as
// ready-to-post mrkdwn text.
type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Alias() string { return AliasSlack }

func (s *Slack) Title() string { return "Slack" }

func (s *Slack) AllowUserSubscription() bool { return true }

func (s *Slack) Address(to any) string {
	return AddressOf(AliasSlack, to)
}

// BeforeSend verifies the messenger is configured. The webhook protocol has
// no session to open.
func (s *Slack) BeforeSend(ctx context.Context) error {
	if s.config.WebhookURL == "" {
		return &WarmupError{Messenger: AliasSlack, Err: fmt.Errorf("webhook URL is not configured")}
	}
	return nil
}

func (s *Slack) AfterSend(ctx context.Context) error { return nil }

func (s *Slack) BuildPayload(text, address string) (any, error) {
	return slackPayload{Text: text}, nil
}

func (s *Slack) Transmit(ctx context.Context, payload any) error {
	_, err := s.webhook.postJSON(ctx, s.config.WebhookURL, payload)
	return err
}

func (s *Slack) Send(ctx context.Context, batch *Batch, out *Outcomes) error {
	SendEach(ctx, s, batch, out)
	return nil
}

func (s *Slack) SendTest(ctx context.Context, to, text string) error {
	payload, err := s.BuildPayload(text, to)
	if err != nil {
		return err
	}
	return s.Transmit(ctx, payload)
}
