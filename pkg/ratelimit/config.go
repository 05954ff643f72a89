package ratelimit

import (
	"fmt"
	"time"
)

// Config holds the settings for both HTTP-facing limiters. The IP limiter
// guards the unauthenticated hook endpoints against signature probing; the
// recipient limiter bounds how hard one subscriber can hit the preference
// API.
type Config struct {
	// Enabled switches rate limiting on. When false the middleware passes
	// every request through untouched.
	Enabled bool

	// IPLimit is the number of hook requests allowed per client IP per
	// IPWindow.
	IPLimit  int
	IPWindow time.Duration

	// RecipientLimit is the number of preference API requests allowed per
	// authenticated recipient per RecipientWindow.
	RecipientLimit  int
	RecipientWindow time.Duration

	// MaxKeys bounds the number of distinct keys each store keeps in
	// memory before LRU eviction starts.
	MaxKeys int

	// CleanupInterval is how often the janitor sweeps expired entries.
	CleanupInterval time.Duration
}

// Validate rejects negative values. Zero values are legal and are filled in
// by ApplyDefaults.
func (c *Config) Validate() error {
	if c.IPLimit < 0 {
		return fmt.Errorf("IPLimit must be non-negative, got %d", c.IPLimit)
	}
	if c.IPWindow < 0 {
		return fmt.Errorf("IPWindow must be non-negative, got %s", c.IPWindow)
	}
	if c.RecipientLimit < 0 {
		return fmt.Errorf("RecipientLimit must be non-negative, got %d", c.RecipientLimit)
	}
	if c.RecipientWindow < 0 {
		return fmt.Errorf("RecipientWindow must be non-negative, got %s", c.RecipientWindow)
	}
	if c.MaxKeys < 0 {
		return fmt.Errorf("MaxKeys must be non-negative, got %d", c.MaxKeys)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("CleanupInterval must be non-negative, got %s", c.CleanupInterval)
	}
	return nil
}

// ApplyDefaults fills zero values with limits sized for a small
// notification service: hook links arrive in bursts when a campaign lands,
// preference edits are rare.
func (c *Config) ApplyDefaults() {
	if c.IPLimit == 0 {
		c.IPLimit = 60
	}
	if c.IPWindow == 0 {
		c.IPWindow = 1 * time.Minute
	}
	if c.RecipientLimit == 0 {
		c.RecipientLimit = 300
	}
	if c.RecipientWindow == 0 {
		c.RecipientWindow = 1 * time.Hour
	}
	if c.MaxKeys == 0 {
		c.MaxKeys = 10000
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 5 * time.Minute
	}
}

// DefaultConfig returns an enabled Config with every default applied.
func DefaultConfig() *Config {
	config := &Config{Enabled: true}
	config.ApplyDefaults()
	return config
}
