package message

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"sync"

	"courier/internal/domain/entity"
)

// Renderer turns a template and its data into channel-ready text. The
// dispatch pipeline treats it as an opaque collaborator so tests can count
// and fake renders.
type Renderer interface {
	Render(templatePath string, data entity.Context) (string, error)
}

// TemplateRenderer renders html/template files from a filesystem, caching
// parsed templates per path.
type TemplateRenderer struct {
	fsys fs.FS

	mu    sync.Mutex
	cache map[string]*template.Template
}

func NewTemplateRenderer(fsys fs.FS) *TemplateRenderer {
	return &TemplateRenderer{fsys: fsys, cache: make(map[string]*template.Template)}
}

func (r *TemplateRenderer) Render(templatePath string, data entity.Context) (string, error) {
	tpl, err := r.lookup(templatePath)
	if err != nil {
		return "", fmt.Errorf("Render: %w", err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, map[string]any(data)); err != nil {
		return "", fmt.Errorf("Render: %s: %w", templatePath, err)
	}
	return buf.String(), nil
}

func (r *TemplateRenderer) lookup(templatePath string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tpl, ok := r.cache[templatePath]; ok {
		return tpl, nil
	}
	tpl, err := template.ParseFS(r.fsys, templatePath)
	if err != nil {
		return nil, err
	}
	r.cache[templatePath] = tpl
	return tpl, nil
}

// HookLinks builds the signed unsubscribe and mark-read URLs embedded into
// rendered content. A nil HookLinks yields empty directives, which keeps
// rendering usable when the web hooks are not deployed.
type HookLinks struct {
	baseURL string
	signer  *Signer
}

func NewHookLinks(baseURL string, signer *Signer) *HookLinks {
	return &HookLinks{baseURL: strings.TrimRight(baseURL, "/"), signer: signer}
}

// Unsubscribe returns the signed opt-out URL for a dispatch.
func (l *HookLinks) Unsubscribe(messageID, dispatchID int64) string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s/messages/unsubscribe/%d/%d/%s/",
		l.baseURL, messageID, dispatchID, l.signer.DispatchHash(messageID, dispatchID))
}

// MarkRead returns the signed read-tracking URL for a dispatch.
func (l *HookLinks) MarkRead(messageID, dispatchID int64) string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s/messages/ping/%d/%d/%s/",
		l.baseURL, messageID, dispatchID, l.signer.DispatchHash(messageID, dispatchID))
}

// Template data keys added by Compile on top of the message context.
const (
	RenderKeySiteURL     = "SITE_URL"
	RenderKeyUnsubscribe = "directive_unsubscribe"
	RenderKeyMarkRead    = "directive_mark_read"
	RenderKeyMessage     = "message_model"
	RenderKeyDispatch    = "dispatch_model"
)

// Compiler renders dispatch content.
type Compiler struct {
	siteURL  string
	renderer Renderer
	links    *HookLinks
}

func NewCompiler(siteURL string, renderer Renderer, links *HookLinks) *Compiler {
	return &Compiler{siteURL: strings.TrimRight(siteURL, "/"), renderer: renderer, links: links}
}

// Compile produces the delivery text for one dispatch of a message.
//
// When the message context requests template rendering, the type's template
// is resolved and executed with the context augmented by the site URL, the
// signed hook directives and the message/dispatch under the RenderKey names.
// Otherwise the literal text stored under KeySimpleText is returned as-is.
func (c *Compiler) Compile(
	typ Type, msg *entity.Message, messengerAlias string, dispatch *entity.Dispatch,
) (string, error) {
	if !UsesTemplate(msg.Context) {
		text, ok := SimpleText(msg.Context)
		if !ok {
			return "", fmt.Errorf("Compile: message %d of type %q carries no text", msg.ID, msg.Cls)
		}
		return text, nil
	}

	data := msg.Context.Clone()
	data[RenderKeySiteURL] = c.siteURL
	data[RenderKeyMessage] = msg
	data[RenderKeyDispatch] = dispatch
	if dispatch != nil {
		data[RenderKeyUnsubscribe] = c.links.Unsubscribe(msg.ID, dispatch.ID)
		data[RenderKeyMarkRead] = c.links.MarkRead(msg.ID, dispatch.ID)
	} else {
		data[RenderKeyUnsubscribe] = ""
		data[RenderKeyMarkRead] = ""
	}
	data = typ.TemplateContext(data)

	text, err := c.renderer.Render(typ.TemplatePath(msg, messengerAlias), data)
	if err != nil {
		return "", fmt.Errorf("Compile: message %d: %w", msg.ID, err)
	}
	return text, nil
}

// UnsubscribeDirective exposes the signed opt-out URL for a dispatch, used by
// channels that carry it out-of-band (e.g. the SMTP List-Unsubscribe header).
func (c *Compiler) UnsubscribeDirective(messageID, dispatchID int64) string {
	return c.links.Unsubscribe(messageID, dispatchID)
}

// SiteURL returns the configured site base URL.
func (c *Compiler) SiteURL() string {
	return c.siteURL
}
