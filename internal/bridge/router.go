package bridge

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/sms-email-bridge/internal/addressing"
	"github.com/wolfman30/sms-email-bridge/internal/observability/metrics"
	"github.com/wolfman30/sms-email-bridge/internal/routeerr"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

var tracer = otel.Tracer("smsbridge.internal.bridge")

const (
	DirectionSMSToEmail = "sms_to_email"
	DirectionEmailToSMS = "email_to_sms"

	// DefaultSubject is the subject line of every forwarded SMS.
	DefaultSubject = "Text message"
)

// Translator converts between phone numbers and bridge email addresses.
type Translator interface {
	PhoneToEmail(phoneText string) (string, error)
	EmailToPhone(email string) (addressing.Number, error)
}

// Directory resolves configured routes.
type Directory interface {
	EmailForPhone(phoneText string) (string, error)
	PhoneForEmail(email string) (addressing.Number, error)
}

// Config wires a Router.
type Config struct {
	Translator Translator
	Directory  Directory
	Email      EmailSender
	SMS        SMSSender
	Subject    string
	Logger     *logging.Logger
	Metrics    *metrics.BridgeMetrics
}

// Router turns one inbound message into one outbound send. It keeps no
// state between calls and is safe for concurrent use.
type Router struct {
	translator Translator
	directory  Directory
	email      EmailSender
	sms        SMSSender
	subject    string
	logger     *logging.Logger
	metrics    *metrics.BridgeMetrics
}

// NewRouter validates cfg and builds a Router.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Translator == nil {
		return nil, errors.New("bridge: translator required")
	}
	if cfg.Directory == nil {
		return nil, errors.New("bridge: directory required")
	}
	if cfg.Email == nil {
		return nil, errors.New("bridge: email sender required")
	}
	if cfg.SMS == nil {
		return nil, errors.New("bridge: sms sender required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		cfg.Subject = DefaultSubject
	}
	return &Router{
		translator: cfg.Translator,
		directory:  cfg.Directory,
		email:      cfg.Email,
		sms:        cfg.SMS,
		subject:    cfg.Subject,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// RouteSMS forwards an SMS to the email address configured for its
// destination number. The sender's number becomes the email's from-address.
func (r *Router) RouteSMS(ctx context.Context, in InboundSMS) (*OutboundEmail, error) {
	ctx, span := tracer.Start(ctx, "bridge.route_sms")
	defer span.End()

	from, err := r.translator.PhoneToEmail(in.From)
	if err != nil {
		return nil, r.fail(ctx, DirectionSMSToEmail, err, nil)
	}
	to, err := r.directory.EmailForPhone(in.To)
	if err != nil {
		return nil, r.fail(ctx, DirectionSMSToEmail, err, nil)
	}
	span.SetAttributes(
		attribute.String("smsbridge.email.from", from),
		attribute.String("smsbridge.email.to", to),
	)

	msg := OutboundEmail{
		To:      to,
		From:    from,
		Subject: r.subject,
		Body:    in.Body,
	}

	start := time.Now()
	err = r.email.SendEmail(ctx, msg)
	r.metrics.ObserveSendLatency(r.email.Name(), time.Since(start).Seconds())
	if err != nil {
		return nil, r.fail(ctx, DirectionSMSToEmail, providerRejected(r.email.Name(), err), err)
	}

	r.metrics.ObserveRouted(DirectionSMSToEmail, "sent")
	r.logger.Info("sms forwarded as email", "from", from, "to", to, "provider", r.email.Name())
	return &msg, nil
}

// RouteEmail forwards the first line of an email as an SMS. The recipient's
// local part is the destination number; the envelope sender must be
// configured and its number becomes the SMS sender.
func (r *Router) RouteEmail(ctx context.Context, in InboundEmail) (*OutboundSMS, error) {
	ctx, span := tracer.Start(ctx, "bridge.route_email")
	defer span.End()

	to, err := r.translator.EmailToPhone(in.To)
	if err != nil {
		return nil, r.fail(ctx, DirectionEmailToSMS, err, nil)
	}
	from, err := r.directory.PhoneForEmail(in.EnvelopeFrom)
	if err != nil {
		return nil, r.fail(ctx, DirectionEmailToSMS, err, nil)
	}
	span.SetAttributes(
		attribute.String("smsbridge.sms.from", from.String()),
		attribute.String("smsbridge.sms.to", to.String()),
	)

	msg := OutboundSMS{
		To:   to,
		From: from,
		Body: FirstLine(in.Text),
	}

	start := time.Now()
	id, err := r.sms.SendSMS(ctx, msg)
	r.metrics.ObserveSendLatency(r.sms.Name(), time.Since(start).Seconds())
	if err != nil {
		return nil, r.fail(ctx, DirectionEmailToSMS, providerRejected(r.sms.Name(), err), err)
	}
	msg.MessageID = id

	r.metrics.ObserveRouted(DirectionEmailToSMS, "sent")
	r.logger.Info("email forwarded as sms", "from", from, "to", to, "provider", r.sms.Name(), "message_id", id)
	return &msg, nil
}

// fail logs a routing error once, with its rendered text as the message.
func (r *Router) fail(ctx context.Context, direction string, err, cause error) error {
	rerr, ok := routeerr.As(err)
	if !ok {
		r.logger.Error("unexpected routing failure", "direction", direction, "error", err)
		r.metrics.ObserveRouted(direction, "error")
		recordSpanError(ctx, err)
		return err
	}
	args := []any{"kind", rerr.Kind.String(), "direction", direction}
	if cause != nil {
		args = append(args, "cause", cause.Error())
	}
	r.logger.Warn(rerr.Error(), args...)
	r.metrics.ObserveRouted(direction, rerr.Kind.String())
	recordSpanError(ctx, rerr)
	return rerr
}

func providerRejected(provider string, err error) *routeerr.Error {
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Provider != "" {
			provider = perr.Provider
		}
		return routeerr.NewProviderRejected(provider, perr.Reason())
	}
	return routeerr.NewProviderRejected(provider, err.Error())
}

func recordSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// lineBreaks are the characters that end a line: \n, \r, \v, \f, the
// ASCII file, group and record separators, NEL, and the Unicode line and
// paragraph separators.
const lineBreaks = "\n\r\v\f\x1c\x1d\x1e\u0085\u2028\u2029"

// FirstLine returns text up to and including its first line terminator, with
// \r\n kept as one terminator. Quoted replies below the first line are dropped.
func FirstLine(text string) string {
	i := strings.IndexAny(text, lineBreaks)
	if i < 0 {
		return text
	}
	if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
		return text[:i+2]
	}
	_, size := utf8.DecodeRuneInString(text[i:])
	return text[:i+size]
}
