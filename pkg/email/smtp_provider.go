package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// SMTPConfig configures the SMTP provider.
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	EnableTLS          bool
	InsecureSkipVerify bool
	OperationTimeout   time.Duration
}

type smtpDialFunc func(ctx context.Context, addr string) (net.Conn, error)

// SMTPProvider sends emails via standard SMTP server.
type SMTPProvider struct {
	cfg  SMTPConfig
	log  logger.Logger
	dial smtpDialFunc
}

// NewSMTPProvider creates a standard SMTP adapter.
func NewSMTPProvider(cfg SMTPConfig, log logger.Logger) (*SMTPProvider, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	p := &SMTPProvider{cfg: cfg, log: log}
	p.dial = p.dialServer
	return p, nil
}

// Send delivers the message in a single SMTP session bounded by the operation timeout.
func (p *SMTPProvider) Send(ctx context.Context, message Message) error {
	msg, err := prepare(message, p.cfg.From)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()

	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	conn, err := p.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if !p.implicitTLS() {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(p.tlsConfig()); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		} else if p.cfg.EnableTLS {
			return fmt.Errorf("smtp server %s does not support STARTTLS", addr)
		}
	}
	if strings.TrimSpace(p.cfg.Username) != "" {
		if err := client.Auth(smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	recipients := append(append(append([]string{}, msg.To...), msg.Cc...), msg.Bcc...)
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	body, err := composeMessage(msg, time.Now())
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func (p *SMTPProvider) implicitTLS() bool {
	return p.cfg.EnableTLS && p.cfg.Port == 465
}

func (p *SMTPProvider) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         p.cfg.Host,
		InsecureSkipVerify: p.cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}

func (p *SMTPProvider) dialServer(ctx context.Context, addr string) (net.Conn, error) {
	if p.implicitTLS() {
		dialer := &tls.Dialer{Config: p.tlsConfig()}
		return dialer.DialContext(ctx, "tcp", addr)
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", addr)
}

// Close releases provider resources.
func (p *SMTPProvider) Close() error {
	return nil
}

// composeMessage renders msg with CRLF line endings. Messages carrying both
// bodies become multipart/alternative.
func composeMessage(msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := func(key, value string) {
		if value != "" {
			buf.WriteString(key + ": " + value + "\r\n")
		}
	}
	header("From", msg.From)
	header("To", strings.Join(msg.To, ", "))
	header("Cc", strings.Join(msg.Cc, ", "))
	header("Reply-To", msg.ReplyTo)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	for _, key := range slices.Sorted(maps.Keys(msg.Headers)) {
		name, value := strings.TrimSpace(key), strings.TrimSpace(msg.Headers[key])
		if name != "" && !strings.ContainsAny(name+value, "\r\n") {
			header(name, value)
		}
	}

	text, html := strings.TrimSpace(msg.TextBody), strings.TrimSpace(msg.HTMLBody)
	if text == "" || html == "" {
		contentType, body := "text/plain", text
		if html != "" {
			contentType, body = "text/html", html
		}
		header("Content-Type", contentType+"; charset=UTF-8")
		buf.WriteString("\r\n" + body)
		return buf.Bytes(), nil
	}

	parts := multipart.NewWriter(&buf)
	header("Content-Type", mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": parts.Boundary()}))
	buf.WriteString("\r\n")
	for _, alt := range []struct{ contentType, body string }{{"text/plain", text}, {"text/html", html}} {
		w, err := parts.CreatePart(textproto.MIMEHeader{"Content-Type": {alt.contentType + "; charset=UTF-8"}})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, alt.body); err != nil {
			return nil, err
		}
	}
	if err := parts.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
