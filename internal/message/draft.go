package message

import "courier/internal/domain/entity"

// Draft is an unscheduled message: the type alias plus the context to
// persist. Drafts are produced by the constructors below or built directly by
// application code, then handed to the scheduling entry point.
type Draft struct {
	Cls     string
	Context entity.Context

	// Priority overrides the type default when non-negative.
	Priority int
}

// NewDraft builds a draft for an arbitrary registered type. Content follows
// the BuildContext rules.
func NewDraft(cls string, content any, templatePath string) (*Draft, error) {
	ctx, err := BuildContext(content, templatePath)
	if err != nil {
		return nil, err
	}
	return &Draft{Cls: cls, Context: ctx, Priority: -1}, nil
}

// Plain wraps bare text as a plain-text message draft.
func Plain(text string) *Draft {
	return &Draft{
		Cls:      AliasPlain,
		Context:  entity.Context{KeySimpleText: text, KeyUseTemplate: false},
		Priority: -1,
	}
}

// Email builds a plain-text e-mail draft. Content may be a string (literal
// body) or a map (template data).
func Email(subject string, content any) (*Draft, error) {
	return emailDraft(AliasEmailText, ContentPlain, subject, content, "")
}

// HTMLEmail builds an HTML e-mail draft. Content may be a string (literal
// HTML body) or a map (template data).
func HTMLEmail(subject string, content any) (*Draft, error) {
	return emailDraft(AliasEmailHTML, ContentHTML, subject, content, "")
}

// EmailFromTemplate builds an HTML e-mail draft rendered from an explicit
// template path.
func EmailFromTemplate(subject string, data map[string]any, templatePath string) (*Draft, error) {
	return emailDraft(AliasEmailHTML, ContentHTML, subject, data, templatePath)
}

func emailDraft(cls, kind, subject string, content any, templatePath string) (*Draft, error) {
	ctx, err := BuildContext(content, templatePath)
	if err != nil {
		return nil, err
	}
	ctx[KeySubject] = subject
	ctx[KeyContentKind] = kind
	return &Draft{Cls: cls, Context: ctx, Priority: -1}, nil
}
