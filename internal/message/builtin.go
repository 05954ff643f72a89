package message

// Builtin type aliases.
const (
	AliasPlain     = "plain"
	AliasEmailText = "email_plain"
	AliasEmailHTML = "email_html"
)

// PlainText is the builtin simple text message type. It lets the scheduling
// entry point accept a bare string instead of a draft.
func PlainText() *Definition {
	return NewDefinition(AliasPlain, WithTitle("Text notification"))
}

// EmailText is the builtin plain-text e-mail type, carried by SMTP only.
func EmailText() *Definition {
	return NewDefinition(AliasEmailText,
		WithTitle("Email notification"),
		WithSupportedMessengers("smtp"),
		WithTemplateExt("txt"),
	)
}

// EmailHTML is the builtin HTML e-mail type, carried by SMTP only.
func EmailHTML() *Definition {
	return NewDefinition(AliasEmailHTML,
		WithTitle("Email notification"),
		WithSupportedMessengers("smtp"),
		WithTemplateExt("html"),
	)
}
