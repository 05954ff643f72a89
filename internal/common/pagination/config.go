// Package pagination provides offset pagination for the list endpoints:
// query parameter parsing, offset and page-count arithmetic and the
// response envelope carrying page metadata.
package pagination

import (
	pkgconfig "courier/pkg/config"
)

// Config bounds what a caller may request per page.
type Config struct {
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns the default pagination configuration:
// page 1, 20 items per page, at most 100.
func DefaultConfig() Config {
	return Config{
		DefaultPage:  1,
		DefaultLimit: 20,
		MaxLimit:     100,
	}
}

// LoadFromEnv loads pagination limits from PAGINATION_DEFAULT_LIMIT and
// PAGINATION_MAX_LIMIT, falling back to the defaults. Pages are always
// 1-based.
func LoadFromEnv() Config {
	defaults := DefaultConfig()
	return Config{
		DefaultPage:  defaults.DefaultPage,
		DefaultLimit: pkgconfig.GetEnvInt("PAGINATION_DEFAULT_LIMIT", defaults.DefaultLimit),
		MaxLimit:     pkgconfig.GetEnvInt("PAGINATION_MAX_LIMIT", defaults.MaxLimit),
	}
}
