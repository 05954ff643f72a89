// Package message defines the message-type contract: how scheduled content
// is structured, rendered per channel, and merged when messages are grouped.
//
// A message type is registered once per alias and consulted by the dispatch
// orchestrator for rendering, retry limits and subscription defaults. Concrete
// types are built from Definition via NewDefinition plus options; code with
// needs beyond that may implement Type directly.
package message

import (
	"fmt"

	"courier/internal/domain/entity"
)

// DefaultRetryLimit bounds send attempts before a dispatch is considered
// permanently failed.
const DefaultRetryLimit = 10

// Type describes one message kind.
//
// Implementations must be safe for concurrent use; the registry hands a single
// instance to every send pass.
type Type interface {
	// Alias identifies the type in storage (`cls` column) and registries.
	Alias() string

	// Title is the human-readable name shown on preference screens.
	Title() string

	// SupportedMessengers restricts which channels may carry this type.
	// Empty means any.
	SupportedMessengers() []string

	// DefaultPriority applies to scheduled messages that do not set their
	// own. Negative means the type declares none.
	DefaultPriority() int

	// GroupMark, when non-empty, switches scheduling into contribution mode:
	// new content is merged into an open message carrying the same mark
	// instead of creating a new row.
	GroupMark() string

	// HasDynamicContext reports that compiled output legitimately differs
	// per dispatch, disabling the per-message compile cache.
	HasDynamicContext() bool

	// SendRetryLimit is the attempt count at which an erroring dispatch is
	// escalated to failed. Zero or negative disables escalation.
	SendRetryLimit() int

	// AllowUserSubscription exposes the type on preference screens.
	AllowUserSubscription() bool

	// TemplatePath resolves the template used to render the given message
	// for the given messenger. It is only consulted when the message context
	// requests template rendering.
	TemplatePath(message *entity.Message, messengerAlias string) string

	// TemplateContext may amend the data handed to the renderer.
	TemplateContext(data entity.Context) entity.Context

	// MergeContext combines a stored grouped message context with newly
	// contributed content.
	MergeContext(old, updated entity.Context) entity.Context
}

// Definition is the stock Type implementation.
type Definition struct {
	alias          string
	title          string
	supported      []string
	priority       int
	groupMark      string
	dynamicContext bool
	retryLimit     int
	subscribable   bool
	template       string
	templateExt    string
	merge          func(old, updated entity.Context) entity.Context
	enrich         func(data entity.Context) entity.Context
}

// Option adjusts a Definition under construction.
type Option func(*Definition)

// NewDefinition builds a message type with the stock defaults: any messenger,
// no default priority, retry limit of DefaultRetryLimit, user-subscribable,
// template path deduced from alias and messenger.
func NewDefinition(alias string, opts ...Option) *Definition {
	def := &Definition{
		alias:        alias,
		title:        "Notification",
		priority:     -1,
		retryLimit:   DefaultRetryLimit,
		subscribable: true,
		templateExt:  "tmpl",
	}
	for _, opt := range opts {
		opt(def)
	}
	return def
}

// WithTitle sets the preference-screen name.
func WithTitle(title string) Option {
	return func(def *Definition) { def.title = title }
}

// WithSupportedMessengers limits delivery to the named channels.
func WithSupportedMessengers(aliases ...string) Option {
	return func(def *Definition) { def.supported = aliases }
}

// WithPriority sets the default priority for messages of this type.
func WithPriority(priority int) Option {
	return func(def *Definition) { def.priority = priority }
}

// WithGroupMark enables contribution-mode scheduling under the given mark.
func WithGroupMark(mark string) Option {
	return func(def *Definition) { def.groupMark = mark }
}

// WithDynamicContext marks compiled output as per-dispatch.
func WithDynamicContext() Option {
	return func(def *Definition) { def.dynamicContext = true }
}

// WithRetryLimit overrides the failure-escalation threshold.
func WithRetryLimit(limit int) Option {
	return func(def *Definition) { def.retryLimit = limit }
}

// WithoutUserSubscription hides the type from preference screens.
func WithoutUserSubscription() Option {
	return func(def *Definition) { def.subscribable = false }
}

// WithTemplate pins an explicit template path, skipping deduction.
func WithTemplate(path string) Option {
	return func(def *Definition) { def.template = path }
}

// WithTemplateExt sets the extension used by template path deduction.
func WithTemplateExt(ext string) Option {
	return func(def *Definition) { def.templateExt = ext }
}

// WithMerge replaces the grouped-context merge behavior.
func WithMerge(merge func(old, updated entity.Context) entity.Context) Option {
	return func(def *Definition) { def.merge = merge }
}

// WithTemplateContext installs a hook amending renderer data.
func WithTemplateContext(enrich func(data entity.Context) entity.Context) Option {
	return func(def *Definition) { def.enrich = enrich }
}

func (def *Definition) Alias() string                 { return def.alias }
func (def *Definition) Title() string                 { return def.title }
func (def *Definition) SupportedMessengers() []string { return def.supported }
func (def *Definition) DefaultPriority() int          { return def.priority }
func (def *Definition) GroupMark() string             { return def.groupMark }
func (def *Definition) HasDynamicContext() bool       { return def.dynamicContext }
func (def *Definition) SendRetryLimit() int           { return def.retryLimit }
func (def *Definition) AllowUserSubscription() bool   { return def.subscribable }

// TemplatePath resolves in order: explicit context override, type-level
// template, then the deduced templates/<alias>__<messenger>.<ext> convention.
func (def *Definition) TemplatePath(message *entity.Message, messengerAlias string) string {
	if message != nil {
		if override, ok := message.Context[KeyTemplate].(string); ok && override != "" {
			return override
		}
	}
	if def.template != "" {
		return def.template
	}
	return fmt.Sprintf("templates/%s__%s.%s", def.alias, messengerAlias, def.templateExt)
}

func (def *Definition) TemplateContext(data entity.Context) entity.Context {
	if def.enrich != nil {
		return def.enrich(data)
	}
	return data
}

func (def *Definition) MergeContext(old, updated entity.Context) entity.Context {
	if def.merge != nil {
		return def.merge(old, updated)
	}
	return DefaultMergeContext(old, updated)
}
