// Package email delivers transactional email through a pluggable provider.
package email

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
)

// ErrInvalidMessage marks messages no provider can send. Retrying them cannot succeed.
var ErrInvalidMessage = errors.New("invalid email message")

// Provider is a pluggable email sender implementation.
type Provider interface {
	Send(ctx context.Context, message Message) error
	Close() error
}

// Message is the normalized email payload accepted by all providers.
type Message struct {
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
}

// prepare trims the message, drops repeated recipients (case-insensitive),
// falls back to defaultFrom and rejects anything a provider cannot send.
func prepare(message Message, defaultFrom string) (Message, error) {
	msg := message
	msg.From = cmp.Or(strings.TrimSpace(msg.From), strings.TrimSpace(defaultFrom))
	msg.ReplyTo = strings.TrimSpace(msg.ReplyTo)
	msg.Subject = strings.TrimSpace(msg.Subject)

	seen := map[string]bool{}
	msg.To = uniqueAddresses(msg.To, seen)
	msg.Cc = uniqueAddresses(msg.Cc, seen)
	msg.Bcc = uniqueAddresses(msg.Bcc, seen)

	switch {
	case msg.From == "":
		return Message{}, invalidMessage("sender is required when the provider has no default")
	case len(seen) == 0:
		return Message{}, invalidMessage("at least one recipient is required")
	case msg.Subject == "":
		return Message{}, invalidMessage("subject is required")
	case strings.TrimSpace(msg.TextBody) == "" && strings.TrimSpace(msg.HTMLBody) == "":
		return Message{}, invalidMessage("a text or html body is required")
	}
	for _, addr := range slices.Concat(msg.To, msg.Cc, msg.Bcc) {
		if _, err := mail.ParseAddress(addr); err != nil {
			return Message{}, invalidMessage(fmt.Sprintf("invalid recipient %q", addr))
		}
	}
	return msg, nil
}

func invalidMessage(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, reason)
}

// uniqueAddresses trims list and drops blanks and addresses already in seen.
func uniqueAddresses(list []string, seen map[string]bool) []string {
	out := make([]string, 0, len(list))
	for _, raw := range list {
		addr := strings.TrimSpace(raw)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out
}
