package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/domain/entity"
)

func TestNewDefinition_Defaults(t *testing.T) {
	def := NewDefinition("custom")

	assert.Equal(t, "custom", def.Alias())
	assert.Equal(t, "Notification", def.Title())
	assert.Empty(t, def.SupportedMessengers())
	assert.Equal(t, -1, def.DefaultPriority())
	assert.Empty(t, def.GroupMark())
	assert.False(t, def.HasDynamicContext())
	assert.Equal(t, DefaultRetryLimit, def.SendRetryLimit())
	assert.True(t, def.AllowUserSubscription())
}

func TestNewDefinition_Options(t *testing.T) {
	def := NewDefinition("digest",
		WithTitle("Daily digest"),
		WithSupportedMessengers("smtp", "telegram"),
		WithPriority(3),
		WithGroupMark("daily"),
		WithDynamicContext(),
		WithRetryLimit(2),
		WithoutUserSubscription(),
	)

	assert.Equal(t, "Daily digest", def.Title())
	assert.Equal(t, []string{"smtp", "telegram"}, def.SupportedMessengers())
	assert.Equal(t, 3, def.DefaultPriority())
	assert.Equal(t, "daily", def.GroupMark())
	assert.True(t, def.HasDynamicContext())
	assert.Equal(t, 2, def.SendRetryLimit())
	assert.False(t, def.AllowUserSubscription())
}

func TestDefinition_TemplatePath(t *testing.T) {
	tests := []struct {
		name    string
		def     *Definition
		message *entity.Message
		want    string
	}{
		{
			name:    "deduced from alias and messenger",
			def:     NewDefinition("plain"),
			message: &entity.Message{Context: entity.Context{}},
			want:    "templates/plain__smtp.tmpl",
		},
		{
			name:    "extension option changes deduction",
			def:     NewDefinition("email_html", WithTemplateExt("html")),
			message: &entity.Message{Context: entity.Context{}},
			want:    "templates/email_html__smtp.html",
		},
		{
			name:    "type-level template wins over deduction",
			def:     NewDefinition("plain", WithTemplate("templates/custom.tmpl")),
			message: &entity.Message{Context: entity.Context{}},
			want:    "templates/custom.tmpl",
		},
		{
			name: "context override wins over everything",
			def:  NewDefinition("plain", WithTemplate("templates/custom.tmpl")),
			message: &entity.Message{
				Context: entity.Context{KeyTemplate: "templates/special.tmpl"},
			},
			want: "templates/special.tmpl",
		},
		{
			name: "nil message falls back to deduction",
			def:  NewDefinition("plain"),
			want: "templates/plain__smtp.tmpl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.def.TemplatePath(tt.message, "smtp"))
		})
	}
}

func TestDefinition_MergeHook(t *testing.T) {
	def := NewDefinition("custom", WithMerge(func(old, updated entity.Context) entity.Context {
		return entity.Context{"merged": true}
	}))

	got := def.MergeContext(entity.Context{"a": 1}, entity.Context{"b": 2})
	assert.Equal(t, entity.Context{"merged": true}, got)
}

func TestBuiltinDefinitions(t *testing.T) {
	plain := PlainText()
	assert.Equal(t, AliasPlain, plain.Alias())
	assert.Equal(t, "Text notification", plain.Title())
	assert.Empty(t, plain.SupportedMessengers())

	emailText := EmailText()
	assert.Equal(t, AliasEmailText, emailText.Alias())
	assert.Equal(t, []string{"smtp"}, emailText.SupportedMessengers())
	assert.Equal(t, "templates/email_plain__smtp.txt", emailText.TemplatePath(nil, "smtp"))

	emailHTML := EmailHTML()
	assert.Equal(t, AliasEmailHTML, emailHTML.Alias())
	assert.Equal(t, "templates/email_html__smtp.html", emailHTML.TemplatePath(nil, "smtp"))
}

func TestDrafts(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		draft := Plain("hello")
		assert.Equal(t, AliasPlain, draft.Cls)
		assert.Equal(t, entity.Context{KeySimpleText: "hello", KeyUseTemplate: false}, draft.Context)
		assert.Equal(t, -1, draft.Priority)
	})

	t.Run("email with literal body", func(t *testing.T) {
		draft, err := Email("Greetings", "hello")
		require.NoError(t, err)
		assert.Equal(t, AliasEmailText, draft.Cls)
		assert.Equal(t, entity.Context{
			KeySimpleText:  "hello",
			KeyUseTemplate: false,
			KeySubject:     "Greetings",
			KeyContentKind: "plain",
		}, draft.Context)
	})

	t.Run("html email with template data", func(t *testing.T) {
		draft, err := HTMLEmail("Greetings", map[string]any{"name": "alice"})
		require.NoError(t, err)
		assert.Equal(t, AliasEmailHTML, draft.Cls)
		assert.Equal(t, entity.Context{
			"name":         "alice",
			KeyUseTemplate: true,
			KeySubject:     "Greetings",
			KeyContentKind: "html",
		}, draft.Context)
	})

	t.Run("explicit template path", func(t *testing.T) {
		draft, err := EmailFromTemplate("Greetings", map[string]any{"name": "alice"}, "templates/welcome.html")
		require.NoError(t, err)
		assert.Equal(t, "templates/welcome.html", draft.Context[KeyTemplate])
		assert.Equal(t, true, draft.Context[KeyUseTemplate])
	})

	t.Run("unsupported content", func(t *testing.T) {
		_, err := Email("Greetings", 42)
		require.Error(t, err)
	})
}
