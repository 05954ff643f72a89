package middleware

import (
	"strings"
)

// WhitelistValidator allows an origin only when it exactly matches one of
// the configured entries. Matching is case-insensitive and ignores trailing
// slashes; both sides are normalized once.
type WhitelistValidator struct {
	allowedOrigins []string
}

// NewWhitelistValidator builds a validator from the given origins. Entries
// are lowercased, stripped of trailing slashes, and empty strings are
// dropped.
func NewWhitelistValidator(origins []string) *WhitelistValidator {
	normalized := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		origin = strings.ToLower(origin)
		origin = strings.TrimSuffix(origin, "/")
		normalized = append(normalized, origin)
	}

	return &WhitelistValidator{
		allowedOrigins: normalized,
	}
}

// IsAllowed reports whether origin is in the whitelist.
func (v *WhitelistValidator) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}

	origin = strings.ToLower(strings.TrimSpace(origin))
	origin = strings.TrimSuffix(origin, "/")

	for _, allowed := range v.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// GetAllowedOrigins returns a copy of the whitelist in normalized form.
func (v *WhitelistValidator) GetAllowedOrigins() []string {
	return append([]string(nil), v.allowedOrigins...)
}
