// Package bridge routes an inbound SMS to an outbound email and an inbound
// email to an outbound SMS.
package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/sms-email-bridge/internal/addressing"
)

// InboundSMS is the part of an SMS webhook the router needs.
type InboundSMS struct {
	From string
	To   string
	Body string
}

// InboundEmail is the part of an inbound-mail webhook the router needs.
// EnvelopeFrom is the true sender reported by the mail provider.
type InboundEmail struct {
	EnvelopeFrom string
	To           string
	Text         string
}

// OutboundEmail is what an SMS becomes.
type OutboundEmail struct {
	To      string
	From    string
	Subject string
	Body    string
}

// OutboundSMS is what an email becomes. MessageID is set by the provider.
type OutboundSMS struct {
	To        addressing.Number
	From      addressing.Number
	Body      string
	MessageID string
}

// EmailSender delivers an OutboundEmail through a provider.
type EmailSender interface {
	Name() string
	SendEmail(ctx context.Context, msg OutboundEmail) error
}

// SMSSender delivers an OutboundSMS and returns the provider's message ID.
type SMSSender interface {
	Name() string
	SendSMS(ctx context.Context, msg OutboundSMS) (string, error)
}

// ProviderError is returned by senders when a provider declines a message.
// Reasons carry the provider's own wording.
type ProviderError struct {
	Provider string
	Status   int
	Reasons  []string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rejected message", e.Provider)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if reason := e.Reason(); reason != "" {
		b.WriteString(": ")
		b.WriteString(reason)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Reason joins the provider's reasons, falling back to the wrapped error.
func (e *ProviderError) Reason() string {
	if len(e.Reasons) > 0 {
		return strings.Join(e.Reasons, ", ")
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}
