package pathutil

import (
	"regexp"
	"strings"
)

// pathPattern pairs a route regex with the template reported to metrics.
type pathPattern struct {
	pattern  *regexp.Regexp
	template string
}

// pathPatterns lists the dynamic routes, most specific first. Pre-compiled
// so normalization stays cheap enough for the request hot path.
var pathPatterns = []pathPattern{
	// Signed hook links embed message id, dispatch id and a signature; all
	// three collapse into one label.
	{pattern: regexp.MustCompile(`^/messages/unsubscribe/.+$`), template: "/messages/unsubscribe/:ref"},
	{pattern: regexp.MustCompile(`^/messages/ping/.+$`), template: "/messages/ping/:ref"},
}

// NormalizePath collapses dynamic URL paths into templates so metric labels
// stay bounded. Hook links carry per-dispatch ids and signatures; without
// normalization every delivered message would mint new label values.
//
// Static paths (/health, /metrics, /preferences, /subscriptions,
// /dispatches/unread) pass through unchanged. Query strings and trailing
// slashes are stripped before matching.
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.pattern.MatchString(path) {
			return p.template
		}
	}
	return path
}
