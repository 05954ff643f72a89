package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SMTPSettings configures the e-mail messenger.
type SMTPSettings struct {
	Enabled        bool   `yaml:"enabled"`
	From           string `yaml:"from"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	LoginEnv       string `yaml:"login_env"`
	PasswordEnv    string `yaml:"password_env"`
	UseTLS         bool   `yaml:"use_tls"`
	UseSSL         bool   `yaml:"use_ssl"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TelegramSettings configures the Telegram Bot API messenger.
type TelegramSettings struct {
	Enabled        bool   `yaml:"enabled"`
	TokenEnv       string `yaml:"token_env"`
	APIBaseURL     string `yaml:"api_base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// WebhookSettings configures a webhook-posting messenger (Slack, Discord).
type WebhookSettings struct {
	Enabled        bool   `yaml:"enabled"`
	WebhookURLEnv  string `yaml:"webhook_url_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MessengersConfig represents delivery channel configuration.
type MessengersConfig struct {
	Messengers struct {
		SMTP     SMTPSettings     `yaml:"smtp"`
		Telegram TelegramSettings `yaml:"telegram"`
		Slack    WebhookSettings  `yaml:"slack"`
		Discord  WebhookSettings  `yaml:"discord"`
	} `yaml:"messengers"`
}

// LoadMessengersConfig loads delivery channel configuration from a YAML file.
// The path parameter is expected to come from a trusted source (command-line argument or hardcoded default).
func LoadMessengersConfig(path string) (*MessengersConfig, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MessengersConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateMessengersConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// validateMessengersConfig checks every enabled channel for the fields a
// working messenger needs. Disabled channels are not inspected, so a half
// filled-in block is fine as long as it stays off.
func validateMessengersConfig(config *MessengersConfig) error {
	m := &config.Messengers

	if m.SMTP.Enabled {
		if m.SMTP.From == "" {
			return fmt.Errorf("smtp from is required")
		}
		if m.SMTP.Host == "" {
			return fmt.Errorf("smtp host is required")
		}
		if m.SMTP.Port < 1 || m.SMTP.Port > 65535 {
			return fmt.Errorf("smtp port must be in 1..65535, got %d", m.SMTP.Port)
		}
		if m.SMTP.UseTLS && m.SMTP.UseSSL {
			return fmt.Errorf("smtp use_tls and use_ssl are mutually exclusive")
		}
	}

	if m.Telegram.Enabled && m.Telegram.TokenEnv == "" {
		return fmt.Errorf("telegram token_env is required")
	}

	if m.Slack.Enabled && m.Slack.WebhookURLEnv == "" {
		return fmt.Errorf("slack webhook_url_env is required")
	}

	if m.Discord.Enabled && m.Discord.WebhookURLEnv == "" {
		return fmt.Errorf("discord webhook_url_env is required")
	}

	if m.SMTP.TimeoutSeconds < 0 || m.Telegram.TimeoutSeconds < 0 ||
		m.Slack.TimeoutSeconds < 0 || m.Discord.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}

	return nil
}

// EnabledCount returns how many channels are switched on.
func (c *MessengersConfig) EnabledCount() int {
	count := 0
	for _, enabled := range []bool{
		c.Messengers.SMTP.Enabled,
		c.Messengers.Telegram.Enabled,
		c.Messengers.Slack.Enabled,
		c.Messengers.Discord.Enabled,
	} {
		if enabled {
			count++
		}
	}
	return count
}

// timeout converts a timeout_seconds value, zero meaning "use the
// messenger's default".
func timeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// requireEnv resolves a credential environment variable, failing loudly at
// startup rather than at first delivery.
func requireEnv(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return value, nil
}
