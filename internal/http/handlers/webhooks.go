package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	"github.com/wolfman30/sms-email-bridge/internal/dedupe"
	"github.com/wolfman30/sms-email-bridge/internal/messaging"
	"github.com/wolfman30/sms-email-bridge/internal/observability/metrics"
	"github.com/wolfman30/sms-email-bridge/internal/routeerr"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

const (
	twimlEmptyResponse  = "<Response></Response>"
	maxInboundEmailSize = 32 << 20
)

// MessageRouter is the routing core behind the webhooks.
type MessageRouter interface {
	RouteSMS(ctx context.Context, in bridge.InboundSMS) (*bridge.OutboundEmail, error)
	RouteEmail(ctx context.Context, in bridge.InboundEmail) (*bridge.OutboundSMS, error)
}

// WebhookConfig wires a WebhookHandler.
type WebhookConfig struct {
	Router MessageRouter
	// Dedupe is optional; nil disables redelivery suppression.
	Dedupe  dedupe.Store
	Metrics *metrics.BridgeMetrics
	Logger  *logging.Logger

	TwilioAuthToken         string
	TwilioValidateSignature bool
	PublicBaseURL           string
}

// WebhookHandler serves the inbound SMS and email webhooks.
type WebhookHandler struct {
	router            MessageRouter
	dedupe            dedupe.Store
	metrics           *metrics.BridgeMetrics
	logger            *logging.Logger
	twilioAuthToken   string
	validateSignature bool
	publicBaseURL     string
	validate          *validator.Validate
}

// NewWebhookHandler builds the webhook handler.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		router:            cfg.Router,
		dedupe:            cfg.Dedupe,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		twilioAuthToken:   cfg.TwilioAuthToken,
		validateSignature: cfg.TwilioValidateSignature,
		publicBaseURL:     strings.TrimRight(cfg.PublicBaseURL, "/"),
		validate:          validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HandleSMS serves POST /handle-sms.
func (h *WebhookHandler) HandleSMS(w http.ResponseWriter, r *http.Request) {
	if h.validateSignature {
		if !messaging.ValidateTwilioSignature(r, h.twilioAuthToken, requestURL(r, h.publicBaseURL)) {
			h.logger.Warn("invalid twilio signature", "path", r.URL.Path)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	webhook, err := messaging.ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Warn("malformed sms webhook", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := ""
	if webhook.MessageSid != "" {
		key = dedupe.Key(bridge.DirectionSMSToEmail, webhook.MessageSid)
	}
	if !h.claim(r.Context(), bridge.DirectionSMSToEmail, key) {
		writeXML(w, http.StatusOK, twimlEmptyResponse)
		return
	}

	_, err = h.router.RouteSMS(r.Context(), bridge.InboundSMS{
		From: webhook.From,
		To:   webhook.To,
		Body: webhook.Body,
	})
	if err != nil {
		h.release(r.Context(), key)
		h.writeRoutingError(w, bridge.DirectionSMSToEmail, err)
		return
	}
	writeXML(w, http.StatusOK, twimlEmptyResponse)
}

// inboundParseEnvelope is the JSON "envelope" field of SendGrid Inbound Parse.
type inboundParseEnvelope struct {
	To   []string `json:"to"`
	From string   `json:"from" validate:"required"`
}

type inboundParseForm struct {
	To       string `validate:"required"`
	Envelope string `validate:"required"`
	Text     string
	Headers  string
}

// HandleEmail serves POST /handle-email.
func (h *WebhookHandler) HandleEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxInboundEmailSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Warn("malformed email webhook", "error", err)
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	form := inboundParseForm{
		To:       strings.TrimSpace(r.PostFormValue("to")),
		Envelope: r.PostFormValue("envelope"),
		Text:     r.PostFormValue("text"),
		Headers:  r.PostFormValue("headers"),
	}
	if err := h.validate.Struct(form); err != nil {
		h.logger.Warn("malformed email webhook", "error", err)
		http.Error(w, fmt.Sprintf("missing required field: %s", firstInvalidField(err)), http.StatusBadRequest)
		return
	}

	var envelope inboundParseEnvelope
	if err := json.Unmarshal([]byte(form.Envelope), &envelope); err != nil {
		h.logger.Warn("malformed email envelope", "error", err)
		http.Error(w, "invalid envelope", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(envelope); err != nil {
		h.logger.Warn("malformed email envelope", "error", err)
		http.Error(w, "envelope sender missing", http.StatusBadRequest)
		return
	}

	key := ""
	if id := messageIDFromHeaders(form.Headers); id != "" {
		key = dedupe.Key(bridge.DirectionEmailToSMS, id)
	}
	if !h.claim(r.Context(), bridge.DirectionEmailToSMS, key) {
		writeText(w, http.StatusOK, "")
		return
	}

	sms, err := h.router.RouteEmail(r.Context(), bridge.InboundEmail{
		EnvelopeFrom: strings.TrimSpace(envelope.From),
		To:           recipientAddress(form.To),
		Text:         form.Text,
	})
	if err != nil {
		h.release(r.Context(), key)
		h.writeRoutingError(w, bridge.DirectionEmailToSMS, err)
		return
	}
	writeText(w, http.StatusOK, sms.MessageID)
}

// claim reports whether the message should be routed. An empty key or an
// unreachable store lets the message through.
func (h *WebhookHandler) claim(ctx context.Context, direction, key string) bool {
	if h.dedupe == nil || key == "" {
		return true
	}
	first, err := h.dedupe.Claim(ctx, key)
	if err != nil {
		h.logger.Error("dedupe unavailable; routing without redelivery check", "key", key, "error", err)
		return true
	}
	if !first {
		h.logger.Info("duplicate webhook delivery ignored", "key", key, "direction", direction)
		h.metrics.ObserveDuplicate(direction)
	}
	return first
}

func (h *WebhookHandler) release(ctx context.Context, key string) {
	if h.dedupe == nil || key == "" {
		return
	}
	if err := h.dedupe.Release(ctx, key); err != nil {
		h.logger.Error("dedupe release failed", "key", key, "error", err)
	}
}

// writeRoutingError answers a failed route. The router has already logged
// routing errors; anything else is unexpected and logged here.
func (h *WebhookHandler) writeRoutingError(w http.ResponseWriter, direction string, err error) {
	rerr, ok := routeerr.As(err)
	if !ok {
		h.logger.Error("routing failed", "direction", direction, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeText(w, routingStatus(direction, rerr.Kind), rerr.Error())
}

// routingStatus maps a routing error to a response status. Email-side
// rejections are answered 200 so the mail provider stops redelivering.
func routingStatus(direction string, kind routeerr.Kind) int {
	switch kind {
	case routeerr.InvalidPhoneNumber, routeerr.NoEmailForNumber:
		return http.StatusBadRequest
	case routeerr.InvalidPhoneNumberInEmail, routeerr.NoNumberForEmail:
		if direction == bridge.DirectionEmailToSMS {
			return http.StatusOK
		}
		return http.StatusBadRequest
	case routeerr.ProviderRejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// recipientAddress extracts the bare address from a To header value such as
// `"Bob" <14155551212@sms.example.com>`. Unparseable input is returned as-is
// so the router reports it.
func recipientAddress(to string) string {
	addrs, err := mail.ParseAddressList(to)
	if err != nil || len(addrs) == 0 {
		return to
	}
	return addrs[0].Address
}

// messageIDFromHeaders pulls Message-ID out of the raw header block that
// SendGrid forwards.
func messageIDFromHeaders(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	msg, err := mail.ReadMessage(strings.NewReader(raw + "\r\n\r\n"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(msg.Header.Get("Message-Id"))
}

func firstInvalidField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].Field())
	}
	return "unknown"
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// requestURL rebuilds the URL the provider called, preferring the configured
// public base URL over what the request reports behind a proxy.
func requestURL(r *http.Request, publicBaseURL string) string {
	return baseURL(r, publicBaseURL) + r.URL.RequestURI()
}

func baseURL(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/")
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}
