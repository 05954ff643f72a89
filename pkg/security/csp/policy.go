// Package csp builds Content-Security-Policy header values. The API serves
// JSON and hook redirects, so its policy locks everything down; the builder
// exists so a deployment fronting a browser UI can loosen individual
// directives without string concatenation.
package csp

import (
	"fmt"
	"strings"
)

// Builder assembles a Content-Security-Policy value directive by directive.
// Not safe for concurrent use; build the policy once at startup.
//
//	policy := csp.NewBuilder().
//		DefaultSrc("'none'").
//		ConnectSrc("'self'").
//		Build()
type Builder struct {
	directives map[string][]string
	reportOnly bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{directives: make(map[string][]string)}
}

// DefaultSrc sets the default-src directive, the fallback for every fetch
// directive not set explicitly.
func (b *Builder) DefaultSrc(sources ...string) *Builder {
	b.directives["default-src"] = sources
	return b
}

// ScriptSrc sets the script-src directive.
func (b *Builder) ScriptSrc(sources ...string) *Builder {
	b.directives["script-src"] = sources
	return b
}

// StyleSrc sets the style-src directive.
func (b *Builder) StyleSrc(sources ...string) *Builder {
	b.directives["style-src"] = sources
	return b
}

// ImgSrc sets the img-src directive.
func (b *Builder) ImgSrc(sources ...string) *Builder {
	b.directives["img-src"] = sources
	return b
}

// ConnectSrc sets the connect-src directive, which governs fetch,
// XMLHttpRequest, WebSocket and EventSource targets.
func (b *Builder) ConnectSrc(sources ...string) *Builder {
	b.directives["connect-src"] = sources
	return b
}

// FrameAncestors sets the frame-ancestors directive. "'none'" blocks all
// framing and with it clickjacking.
func (b *Builder) FrameAncestors(sources ...string) *Builder {
	b.directives["frame-ancestors"] = sources
	return b
}

// FormAction sets the form-action directive.
func (b *Builder) FormAction(sources ...string) *Builder {
	b.directives["form-action"] = sources
	return b
}

// BaseUri sets the base-uri directive, keeping injected <base> elements
// from redirecting relative URLs.
func (b *Builder) BaseUri(sources ...string) *Builder {
	b.directives["base-uri"] = sources
	return b
}

// ObjectSrc sets the object-src directive.
func (b *Builder) ObjectSrc(sources ...string) *Builder {
	b.directives["object-src"] = sources
	return b
}

// ReportOnly switches the policy to report-only mode, where violations are
// reported but not enforced.
func (b *Builder) ReportOnly(enabled bool) *Builder {
	b.reportOnly = enabled
	return b
}

// Build renders the policy string. Directives appear in a fixed order so
// diffs of logged headers stay readable.
func (b *Builder) Build() string {
	if len(b.directives) == 0 {
		return ""
	}

	order := []string{
		"default-src",
		"script-src",
		"style-src",
		"img-src",
		"connect-src",
		"frame-ancestors",
		"form-action",
		"base-uri",
		"object-src",
	}

	var parts []string
	for _, directive := range order {
		if sources, ok := b.directives[directive]; ok && len(sources) > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", directive, strings.Join(sources, " ")))
		}
	}
	return strings.Join(parts, "; ")
}

// HeaderName returns the header the built value belongs under, honoring
// report-only mode.
func (b *Builder) HeaderName() string {
	if b.reportOnly {
		return "Content-Security-Policy-Report-Only"
	}
	return "Content-Security-Policy"
}

// StrictPolicy is the policy for JSON endpoints and hook redirects: no
// content of any kind may load, nothing may frame the response. A browser
// that lands on an API URL gets an inert document.
func StrictPolicy() *Builder {
	return NewBuilder().
		DefaultSrc("'none'").
		ConnectSrc("'self'").
		FrameAncestors("'none'").
		BaseUri("'self'").
		FormAction("'self'")
}
