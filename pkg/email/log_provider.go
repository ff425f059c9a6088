package email

import (
	"context"
	"strings"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// LogProvider writes messages to the log instead of sending them. Used for local development.
type LogProvider struct {
	from string
	log  logger.Logger
}

// NewLogProvider creates a provider that only logs.
func NewLogProvider(from string, log logger.Logger) *LogProvider {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(from) == "" {
		from = "noreply@learnhub.local"
	}
	return &LogProvider{from: from, log: log}
}

// Send logs the message envelope and body.
func (p *LogProvider) Send(ctx context.Context, message Message) error {
	msg, err := prepare(message, p.from)
	if err != nil {
		return err
	}
	p.log.WithContext(ctx).Info("email (log provider)",
		"from", msg.From,
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"html", msg.HTMLBody,
		"text", msg.TextBody,
	)
	return nil
}

// Close releases resources.
func (p *LogProvider) Close() error {
	return nil
}
