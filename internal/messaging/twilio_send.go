package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

var twilioSendTracer = otel.Tracer("smsbridge.internal.messaging.twilio_send")

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// WithBaseURL points the sender at another API host.
func (s *TwilioSender) WithBaseURL(baseURL string) *TwilioSender {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

var _ bridge.SMSSender = (*TwilioSender)(nil)

func (s *TwilioSender) Name() string { return "Twilio" }

// SendSMS dispatches a single SMS and returns the Twilio message SID. Failed
// sends are not retried.
func (s *TwilioSender) SendSMS(ctx context.Context, msg bridge.OutboundSMS) (string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", errors.New("messaging: twilio credentials missing")
	}
	if msg.To == "" {
		return "", errors.New("messaging: to required")
	}
	if msg.From == "" {
		return "", errors.New("messaging: from required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("smsbridge.sms.to", msg.To.String()),
		attribute.String("smsbridge.sms.from", msg.From.String()),
	)

	payload := url.Values{}
	payload.Set("To", msg.To.String())
	payload.Set("From", msg.From.String())
	payload.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", fmt.Errorf("messaging: build twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("twilio request failed", "error", err, "to", msg.To)
		return "", &bridge.ProviderError{Provider: s.Name(), Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &bridge.ProviderError{
			Provider: s.Name(),
			Status:   resp.StatusCode,
			Reasons:  []string{formatTwilioError(resp.StatusCode, body)},
		}
		span.RecordError(perr)
		s.logger.Error("twilio send failed", "status", resp.StatusCode, "error", perr.Reason(), "to", msg.To)
		return "", perr
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &bridge.ProviderError{Provider: s.Name(), Status: resp.StatusCode, Err: fmt.Errorf("decode twilio response: %w", err)}
	}
	span.SetAttributes(attribute.String("smsbridge.twilio.message_sid", parsed.SID))
	s.logger.Info("twilio sms sent", "to", msg.To, "sid", parsed.SID, "status", parsed.Status)
	return parsed.SID, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("code %d: %s", parsed.Code, parsed.Message)
		}
		return parsed.Message
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
