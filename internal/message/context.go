package message

import (
	"fmt"

	"courier/internal/domain/entity"
)

// Reserved context keys. They travel inside the persisted message context, so
// renaming them breaks stored messages.
const (
	// KeySimpleText holds literal message text for non-template rendering.
	KeySimpleText = "stext_"

	// KeyTemplate holds an explicit template path override.
	KeyTemplate = "tpl"

	// KeyUseTemplate flags that the message renders through a template.
	KeyUseTemplate = "use_tpl"

	// KeySubject and KeyContentKind carry e-mail metadata consumed by the
	// SMTP channel when building MIME messages.
	KeySubject     = "subject"
	KeyContentKind = "type"
)

// Values stored under KeyContentKind.
const (
	ContentPlain = "plain"
	ContentHTML  = "html"
)

// BuildContext structures raw scheduling content into a message context.
//
// A string becomes literal text under KeySimpleText. A map is taken as
// template data and switches template rendering on, unless it itself carries
// KeySimpleText, in which case the literal text wins. A non-empty templatePath
// is stored as the explicit override.
func BuildContext(content any, templatePath string) (entity.Context, error) {
	built := entity.Context{KeyUseTemplate: false}

	switch c := content.(type) {
	case string:
		built[KeySimpleText] = c
	case entity.Context:
		for k, v := range c {
			built[k] = v
		}
		built[KeyUseTemplate] = true
	case map[string]any:
		for k, v := range c {
			built[k] = v
		}
		built[KeyUseTemplate] = true
	default:
		return nil, fmt.Errorf("BuildContext: unsupported content type %T", content)
	}

	if _, ok := built[KeySimpleText]; ok {
		built[KeyUseTemplate] = false
	}
	if templatePath != "" {
		built[KeyTemplate] = templatePath
	}
	return built, nil
}

// UsesTemplate reports whether the context requests template rendering.
func UsesTemplate(ctx entity.Context) bool {
	use, _ := ctx[KeyUseTemplate].(bool)
	return use
}

// SimpleText extracts the literal message text from a context.
func SimpleText(ctx entity.Context) (string, bool) {
	text, ok := ctx[KeySimpleText].(string)
	return text, ok
}

// DefaultMergeContext merges a grouped message's stored context with newly
// contributed content: newer keys win, and simple-text bodies concatenate
// with a newline so grouped digests accumulate instead of overwriting.
func DefaultMergeContext(old, updated entity.Context) entity.Context {
	merged := make(entity.Context, len(old)+len(updated))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range updated {
		merged[k] = v
	}

	if prev, ok := old[KeySimpleText]; ok {
		next, _ := updated[KeySimpleText].(string)
		merged[KeySimpleText] = fmt.Sprintf("%v\n%s", prev, next)
	}
	return merged
}
