package config

import (
	"fmt"

	"courier/internal/message"
	"courier/internal/messenger"
)

// BuildMessengers constructs the enabled messengers in a stable order,
// resolving credentials from the environment variables the configuration
// names. A missing credential for an enabled channel is a startup error.
//
// links provides signed hook URLs for channels that embed them (e-mail's
// List-Unsubscribe header); nil disables the links.
func BuildMessengers(config *MessengersConfig, links *message.HookLinks) ([]messenger.Messenger, error) {
	m := &config.Messengers
	built := make([]messenger.Messenger, 0, 4)

	if m.SMTP.Enabled {
		smtpConfig := messenger.SMTPConfig{
			From:    m.SMTP.From,
			Host:    m.SMTP.Host,
			Port:    m.SMTP.Port,
			UseTLS:  m.SMTP.UseTLS,
			UseSSL:  m.SMTP.UseSSL,
			Timeout: timeout(m.SMTP.TimeoutSeconds),
		}
		// Login is optional: servers on trusted networks accept
		// unauthenticated sessions.
		if m.SMTP.LoginEnv != "" {
			login, err := requireEnv(m.SMTP.LoginEnv)
			if err != nil {
				return nil, fmt.Errorf("smtp: %w", err)
			}
			password, err := requireEnv(m.SMTP.PasswordEnv)
			if err != nil {
				return nil, fmt.Errorf("smtp: %w", err)
			}
			smtpConfig.Login = login
			smtpConfig.Password = password
		}
		built = append(built, messenger.NewSMTP(smtpConfig, links))
	}

	if m.Telegram.Enabled {
		token, err := requireEnv(m.Telegram.TokenEnv)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		built = append(built, messenger.NewTelegram(messenger.TelegramConfig{
			Token:      token,
			APIBaseURL: m.Telegram.APIBaseURL,
			Timeout:    timeout(m.Telegram.TimeoutSeconds),
		}))
	}

	if m.Slack.Enabled {
		webhookURL, err := requireEnv(m.Slack.WebhookURLEnv)
		if err != nil {
			return nil, fmt.Errorf("slack: %w", err)
		}
		built = append(built, messenger.NewSlack(messenger.SlackConfig{
			WebhookURL: webhookURL,
			Timeout:    timeout(m.Slack.TimeoutSeconds),
		}))
	}

	if m.Discord.Enabled {
		webhookURL, err := requireEnv(m.Discord.WebhookURLEnv)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		built = append(built, messenger.NewDiscord(messenger.DiscordConfig{
			WebhookURL: webhookURL,
			Timeout:    timeout(m.Discord.TimeoutSeconds),
		}))
	}

	return built, nil
}
