// Package config loads the YAML configuration files: security.yaml for
// token and hook-signing settings, messengers.yaml for delivery channels.
// Secrets never live in the files themselves; the files name the
// environment variables that hold them.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SecurityConfig represents security configuration.
type SecurityConfig struct {
	Security struct {
		JWT struct {
			SecretEnv   string `yaml:"secret_env"`
			ExpiryHours int    `yaml:"expiry_hours"`
		} `yaml:"jwt"`
		Hooks struct {
			SignerSecretEnv string `yaml:"signer_secret_env"`
			BaseURL         string `yaml:"base_url"`
			RedirectURL     string `yaml:"redirect_url"`
		} `yaml:"hooks"`
		PublicEndpoints []string `yaml:"public_endpoints"`
	} `yaml:"security"`
}

// LoadSecurityConfig loads security configuration from a YAML file.
// The path parameter is expected to come from a trusted source (command-line argument or hardcoded default).
func LoadSecurityConfig(path string) (*SecurityConfig, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config SecurityConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateSecurityConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// validateSecurityConfig validates the loaded configuration.
func validateSecurityConfig(config *SecurityConfig) error {
	if config.Security.JWT.SecretEnv == "" {
		return fmt.Errorf("jwt secret_env is required")
	}
	if config.Security.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("jwt expiry_hours must be positive")
	}

	if config.Security.Hooks.SignerSecretEnv == "" {
		return fmt.Errorf("hooks signer_secret_env is required")
	}
	if config.Security.Hooks.BaseURL == "" {
		return fmt.Errorf("hooks base_url is required")
	}

	return nil
}

// JWTSecret resolves the token-signing secret from the configured
// environment variable.
func (c *SecurityConfig) JWTSecret() ([]byte, error) {
	secret := os.Getenv(c.Security.JWT.SecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("environment variable %s is not set", c.Security.JWT.SecretEnv)
	}
	return []byte(secret), nil
}

// TokenTTL returns the configured bearer token lifetime.
func (c *SecurityConfig) TokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.ExpiryHours) * time.Hour
}

// SignerSecret resolves the hook-signing secret from the configured
// environment variable.
func (c *SecurityConfig) SignerSecret() ([]byte, error) {
	secret := os.Getenv(c.Security.Hooks.SignerSecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("environment variable %s is not set", c.Security.Hooks.SignerSecretEnv)
	}
	return []byte(secret), nil
}

// HookBaseURL returns the public base URL baked into signed hook links.
func (c *SecurityConfig) HookBaseURL() string {
	return c.Security.Hooks.BaseURL
}

// HookRedirectURL returns where hook hits are redirected afterwards,
// defaulting to the site root.
func (c *SecurityConfig) HookRedirectURL() string {
	if c.Security.Hooks.RedirectURL == "" {
		return "/"
	}
	return c.Security.Hooks.RedirectURL
}

// IsPublicEndpoint reports whether a path is configured to bypass token
// authentication.
func (c *SecurityConfig) IsPublicEndpoint(path string) bool {
	for _, endpoint := range c.Security.PublicEndpoints {
		if endpoint == path {
			return true
		}
	}
	return false
}
