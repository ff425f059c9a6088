package email

import (
	"fmt"
	"strings"

	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// Email provider type constants
const (
	ProviderSMTP    = config.EmailProviderSMTP
	ProviderSES     = config.EmailProviderSES
	ProviderMailgun = config.EmailProviderMailgun
	ProviderLog     = config.EmailProviderLog
)

// NewProvider creates the configured provider, wrapped in a circuit breaker when enabled.
func NewProvider(cfg config.EmailConfig, log logger.Logger) (Provider, error) {
	if log == nil {
		log = logger.Nop()
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var (
		provider Provider
		err      error
	)
	switch name {
	case ProviderSMTP:
		provider, err = NewSMTPProvider(SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			From:               cfg.SMTP.From,
			EnableTLS:          cfg.SMTP.EnableTLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
			OperationTimeout:   cfg.SMTP.OperationTimeout,
		}, log)
	case ProviderSES:
		provider, err = NewSESProvider(SESConfig{
			Region:           cfg.SES.Region,
			From:             cfg.SES.From,
			Endpoint:         cfg.SES.Endpoint,
			AccessKeyID:      cfg.SES.AccessKeyID,
			SecretAccessKey:  cfg.SES.SecretAccessKey,
			SessionToken:     cfg.SES.SessionToken,
			OperationTimeout: cfg.SES.OperationTimeout,
		}, log)
	case ProviderMailgun:
		provider, err = NewMailgunProvider(MailgunConfig{
			APIKey:           cfg.Mailgun.Token,
			Domain:           cfg.Mailgun.Domain,
			From:             cfg.Mailgun.From,
			BaseURL:          cfg.Mailgun.BaseURL,
			OperationTimeout: cfg.Mailgun.OperationTimeout,
		}, log)
	case ProviderLog:
		provider = NewLogProvider(cfg.SMTP.From, log)
	default:
		return nil, fmt.Errorf("unsupported email provider %q (supported: smtp, ses, mailgun, log)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CircuitBreaker.Enabled && name != ProviderLog {
		provider = NewGuardedProvider(name, provider, BreakerConfig{
			MaxFailures:  cfg.CircuitBreaker.MaxFailures,
			ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
		}, log)
	}
	return provider, nil
}
