package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// MailgunConfig configures Mailgun adapter.
type MailgunConfig struct {
	APIKey           string
	Domain           string
	From             string
	BaseURL          string
	OperationTimeout time.Duration
}

type mailgunClient interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// MailgunProvider sends email through the Mailgun SDK.
type MailgunProvider struct {
	cfg    MailgunConfig
	client mailgunClient
	log    logger.Logger
}

// NewMailgunProvider creates a Mailgun adapter.
func NewMailgunProvider(cfg MailgunConfig, log logger.Logger) (*MailgunProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("mailgun api key is required")
	}
	if strings.TrimSpace(cfg.Domain) == "" {
		return nil, fmt.Errorf("mailgun domain is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	client := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		client.SetAPIBase(strings.TrimRight(base, "/") + "/v3")
	}
	return &MailgunProvider{cfg: cfg, client: client, log: log}, nil
}

// Send sends email via Mailgun.
func (p *MailgunProvider) Send(ctx context.Context, message Message) error {
	msg, err := prepare(message, p.cfg.From)
	if err != nil {
		return err
	}

	mg := p.client.NewMessage(msg.From, msg.Subject, msg.TextBody, msg.To...)
	if msg.HTMLBody != "" {
		mg.SetHtml(msg.HTMLBody)
	}
	for _, cc := range msg.Cc {
		mg.AddCC(cc)
	}
	for _, bcc := range msg.Bcc {
		mg.AddBCC(bcc)
	}
	if msg.ReplyTo != "" {
		mg.SetReplyTo(msg.ReplyTo)
	}
	for k, v := range msg.Headers {
		mg.AddHeader(k, v)
	}

	sendCtx, cancel := withTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()

	_, id, err := p.client.Send(sendCtx, mg)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	p.log.Debug("email sent via mailgun", "to", strings.Join(msg.To, ","), "message_id", id)
	return nil
}

// Close releases resources.
func (p *MailgunProvider) Close() error {
	return nil
}
