package messenger

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"courier/internal/message"

	"github.com/PuerkitoBio/goquery"
)

const AliasSMTP = "smtp"

const defaultSubject = "No Subject"

// SMTPConfig contains configuration for e-mail delivery.
type SMTPConfig struct {
	// From is the envelope and header sender address.
	From string

	// Login and Password authenticate against the server when Login is set.
	Login    string
	Password string

	Host string
	Port int

	// UseTLS upgrades the session with STARTTLS when the server offers it.
	UseTLS bool

	// UseSSL opens the connection TLS-wrapped from the first byte.
	UseSSL bool

	// Timeout caps connection establishment.
	Timeout time.Duration
}

// smtpSession is the protocol surface the messenger drives during a send
// cycle. *smtp.Client satisfies it.
type smtpSession interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Reset() error
	Quit() error
}

// SMTP delivers compiled message bodies as e-mail over one server session
// per send cycle: BeforeSend connects and authenticates, Send reuses the
// session for every dispatch, AfterSend quits.
type SMTP struct {
	config SMTPConfig
	links  *message.HookLinks

	dial    func(ctx context.Context, config SMTPConfig) (smtpSession, error)
	session smtpSession
}

// NewSMTP creates an SMTP messenger. links provides unsubscribe URLs for the
// List-Unsubscribe header; nil omits the header.
func NewSMTP(config SMTPConfig, links *message.HookLinks) *SMTP {
	return &SMTP{config: config, links: links, dial: dialSMTP}
}

// Emailer yields the e-mail address of a recipient value directly.
type Emailer interface {
	Email() string
}

func (m *SMTP) Alias() string { return AliasSMTP }

func (m *SMTP) Title() string { return "E-mail" }

func (m *SMTP) AllowUserSubscription() bool { return true }

func (m *SMTP) Address(to any) string {
	if e, ok := to.(Emailer); ok {
		if addr := e.Email(); addr != "" {
			return addr
		}
	}
	return AddressOf(AliasSMTP, to)
}

// BeforeSend opens the server session.
func (m *SMTP) BeforeSend(ctx context.Context) error {
	session, err := m.dial(ctx, m.config)
	if err != nil {
		return &WarmupError{Messenger: AliasSMTP, Err: err}
	}

	m.session = session
	return nil
}

// AfterSend quits the session. It is a no-op when warm-up never opened one.
func (m *SMTP) AfterSend(ctx context.Context) error {
	if m.session == nil {
		return nil
	}

	err := m.session.Quit()
	m.session = nil
	return err
}

func (m *SMTP) Send(ctx context.Context, batch *Batch, out *Outcomes) error {
	// No session means warm-up failed and the group is already marked.
	if m.session == nil {
		return nil
	}

	messageCtx := batch.Message.Context
	subject, _ := messageCtx[message.KeySubject].(string)
	kind, _ := messageCtx[message.KeyContentKind].(string)

	for _, dispatch := range batch.Dispatches {
		unsubscribeURL := ""
		if m.links != nil {
			unsubscribeURL = m.links.Unsubscribe(batch.Message.ID, dispatch.ID)
		}

		email, err := buildEmail(m.config.From, dispatch.Address, subject, dispatch.MessageCache, kind, unsubscribeURL)
		if err != nil {
			out.MarkError(dispatch, batch.Type, err)
			continue
		}

		if err := m.transmit(dispatch.Address, email); err != nil {
			if errors.Is(err, errRecipientRefused) {
				out.MarkFailed(dispatch, fmt.Errorf("`%s` address is rejected by server", dispatch.Address))
			} else {
				out.MarkError(dispatch, batch.Type, err)
			}
			continue
		}

		out.MarkSent(dispatch)
	}

	return nil
}

func (m *SMTP) SendTest(ctx context.Context, to, text string) error {
	if m.session == nil {
		return fmt.Errorf("smtp: session is not open")
	}

	email, err := buildEmail(m.config.From, to, "", text, message.ContentHTML, "")
	if err != nil {
		return err
	}

	return m.transmit(to, email)
}

var errRecipientRefused = errors.New("recipient refused")

// transmit runs one mail transaction on the open session. A rejected RCPT
// resets the transaction and reports errRecipientRefused so the caller can
// fail the dispatch permanently.
func (m *SMTP) transmit(to, email string) error {
	session := m.session

	if err := session.Mail(m.config.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}

	if err := session.Rcpt(to); err != nil {
		_ = session.Reset()
		return fmt.Errorf("%w: %v", errRecipientRefused, err)
	}

	writer, err := session.Data()
	if err != nil {
		_ = session.Reset()
		return fmt.Errorf("DATA: %w", err)
	}

	if _, err := io.WriteString(writer, email); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}

	return nil
}

// buildEmail constructs the wire representation of one e-mail. HTML content
// becomes a multipart/alternative body whose plain-text part is derived by
// stripping tags; anything else is sent as plain text.
func buildEmail(from, to, subject, text, kind, unsubscribeURL string) (string, error) {
	if subject == "" {
		subject = defaultSubject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if unsubscribeURL != "" {
		fmt.Fprintf(&b, "List-Unsubscribe: <%s>\r\n", unsubscribeURL)
	}
	b.WriteString("MIME-Version: 1.0\r\n")

	if kind != message.ContentHTML {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(text)
		return b.String(), nil
	}

	alternative := multipart.NewWriter(&b)
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", alternative.Boundary())

	plainPart, err := alternative.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	if err != nil {
		return "", fmt.Errorf("build text part: %w", err)
	}
	if _, err := io.WriteString(plainPart, htmlToText(text)); err != nil {
		return "", fmt.Errorf("build text part: %w", err)
	}

	htmlPart, err := alternative.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return "", fmt.Errorf("build html part: %w", err)
	}
	if _, err := io.WriteString(htmlPart, text); err != nil {
		return "", fmt.Errorf("build html part: %w", err)
	}

	if err := alternative.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	return b.String(), nil
}

// htmlToText derives the plain-text alternative of an HTML body.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}

// dialSMTP opens, secures and authenticates a server session.
func dialSMTP(ctx context.Context, config SMTPConfig) (smtpSession, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if config.UseSSL {
		conn = tls.Client(conn, &tls.Config{ServerName: config.Host, MinVersion: tls.VersionTLS12})
	}

	client, err := smtp.NewClient(conn, config.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if config.UseTLS && !config.UseSSL {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: config.Host, MinVersion: tls.VersionTLS12}); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if config.Login != "" {
		auth := smtp.PlainAuth("", config.Login, config.Password, config.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("auth: %w", err)
		}
	}

	return client, nil
}
