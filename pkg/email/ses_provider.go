package email

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

const (
	sesOutboundPath   = "/v2/email/outbound-emails"
	sesSigningService = "ses"
	sesCharset        = "UTF-8"
)

// SESConfig configures the SES v2 provider. Static keys are optional; the
// default AWS credential chain is used when they are empty.
type SESConfig struct {
	Region           string
	From             string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	OperationTimeout time.Duration
	HTTPClient       *http.Client
}

// SESProvider posts SendEmail calls to the SES v2 API signed with SigV4.
type SESProvider struct {
	from    string
	region  string
	url     string
	timeout time.Duration
	creds   aws.CredentialsProvider
	signer  *v4.Signer
	client  *http.Client
	log     logger.Logger
}

type sesContent struct {
	Data    string `json:"Data"`
	Charset string `json:"Charset"`
}

type sesBody struct {
	Text *sesContent `json:"Text,omitempty"`
	HTML *sesContent `json:"Html,omitempty"`
}

type sesSendRequest struct {
	FromEmailAddress string `json:"FromEmailAddress"`
	Destination      struct {
		ToAddresses  []string `json:"ToAddresses"`
		CcAddresses  []string `json:"CcAddresses,omitempty"`
		BccAddresses []string `json:"BccAddresses,omitempty"`
	} `json:"Destination"`
	Content struct {
		Simple struct {
			Subject sesContent `json:"Subject"`
			Body    sesBody    `json:"Body"`
		} `json:"Simple"`
	} `json:"Content"`
	ReplyToAddresses []string `json:"ReplyToAddresses,omitempty"`
}

// NewSESProvider resolves credentials and builds the provider.
func NewSESProvider(cfg SESConfig, log logger.Logger) (*SESProvider, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return nil, errors.New("ses region is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		opts = append(opts, awsconfig.WithCredentialsProvider(static))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for ses: %w", err)
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if base == "" {
		base = "https://email." + region + ".amazonaws.com"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.OperationTimeout}
	}

	return &SESProvider{
		from:    cfg.From,
		region:  region,
		url:     base + sesOutboundPath,
		timeout: cfg.OperationTimeout,
		creds:   awsCfg.Credentials,
		signer:  v4.NewSigner(),
		client:  client,
		log:     log,
	}, nil
}

func newSESSendRequest(msg Message) sesSendRequest {
	var req sesSendRequest
	req.FromEmailAddress = msg.From
	req.Destination.ToAddresses = msg.To
	req.Destination.CcAddresses = msg.Cc
	req.Destination.BccAddresses = msg.Bcc
	req.Content.Simple.Subject = sesContent{Data: msg.Subject, Charset: sesCharset}
	if msg.TextBody != "" {
		req.Content.Simple.Body.Text = &sesContent{Data: msg.TextBody, Charset: sesCharset}
	}
	if msg.HTMLBody != "" {
		req.Content.Simple.Body.HTML = &sesContent{Data: msg.HTMLBody, Charset: sesCharset}
	}
	if msg.ReplyTo != "" {
		req.ReplyToAddresses = []string{msg.ReplyTo}
	}
	return req
}

// Send delivers one message. A 400 from SES means the message itself was
// rejected and is reported as ErrInvalidMessage.
func (p *SESProvider) Send(ctx context.Context, message Message) error {
	msg, err := prepare(message, p.from)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(newSESSendRequest(msg))
	if err != nil {
		return fmt.Errorf("encode ses request: %w", err)
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	req, err := p.signedRequest(ctx, payload)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ses request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		sendErr := fmt.Errorf("ses responded %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, sendErr)
		}
		return sendErr
	}
	p.log.Debug("email sent via ses", "to", strings.Join(msg.To, ","))
	return nil
}

func (p *SESProvider) signedRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ses request: %w", err)
	}
	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Amz-Content-Sha256", digest)

	creds, err := p.creds.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve ses credentials: %w", err)
	}
	if err := p.signer.SignHTTP(ctx, creds, req, digest, sesSigningService, p.region, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("sign ses request: %w", err)
	}
	return req, nil
}

// Close is a no-op; the HTTP client holds no per-provider resources.
func (p *SESProvider) Close() error {
	return nil
}
