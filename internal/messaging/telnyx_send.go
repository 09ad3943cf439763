package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

var telnyxSendTracer = otel.Tracer("smsbridge.internal.messaging.telnyx_send")

const defaultTelnyxBaseURL = "https://api.telnyx.com/v2"

// TelnyxSender posts SMS messages using Telnyx's V2 API.
type TelnyxSender struct {
	apiKey             string
	messagingProfileID string
	baseURL            string
	httpClient         *http.Client
	logger             *logging.Logger
}

// NewTelnyxSender builds a sender for Telnyx V2 API.
func NewTelnyxSender(apiKey, messagingProfileID string, logger *logging.Logger) *TelnyxSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxSender{
		apiKey:             apiKey,
		messagingProfileID: messagingProfileID,
		baseURL:            defaultTelnyxBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// WithBaseURL points the sender at another API host.
func (s *TelnyxSender) WithBaseURL(baseURL string) *TelnyxSender {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

var _ bridge.SMSSender = (*TelnyxSender)(nil)

func (s *TelnyxSender) Name() string { return "Telnyx" }

// SendSMS dispatches a single SMS via Telnyx and returns the message ID.
func (s *TelnyxSender) SendSMS(ctx context.Context, msg bridge.OutboundSMS) (string, error) {
	if s.apiKey == "" {
		return "", errors.New("messaging: telnyx api key missing")
	}
	if msg.To == "" || msg.From == "" {
		return "", errors.New("messaging: to and from required")
	}

	ctx, span := telnyxSendTracer.Start(ctx, "messaging.telnyx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("smsbridge.sms.to", msg.To.String()),
		attribute.String("smsbridge.sms.from", msg.From.String()),
	)

	payload := map[string]string{
		"from": msg.From.String(),
		"to":   msg.To.String(),
		"text": msg.Body,
	}
	if s.messagingProfileID != "" {
		payload["messaging_profile_id"] = s.messagingProfileID
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("messaging: failed to marshal telnyx payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("messaging: build telnyx request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("telnyx request failed", "error", err, "to", msg.To)
		return "", &bridge.ProviderError{Provider: s.Name(), Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &bridge.ProviderError{
			Provider: s.Name(),
			Status:   resp.StatusCode,
			Reasons:  telnyxReasons(resp.StatusCode, body),
		}
		span.RecordError(perr)
		s.logger.Error("telnyx send failed", "status", resp.StatusCode, "error", perr.Reason(), "to", msg.To)
		return "", perr
	}

	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &bridge.ProviderError{Provider: s.Name(), Status: resp.StatusCode, Err: fmt.Errorf("decode telnyx response: %w", err)}
	}
	s.logger.Info("telnyx sms sent", "to", msg.To, "from", msg.From, "id", parsed.Data.ID)
	return parsed.Data.ID, nil
}

func telnyxReasons(status int, body []byte) []string {
	var parsed struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		reasons := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			switch {
			case e.Detail != "":
				reasons = append(reasons, e.Detail)
			case e.Title != "":
				reasons = append(reasons, e.Title)
			}
		}
		if len(reasons) > 0 {
			return reasons
		}
	}
	return []string{fmt.Sprintf("status %d", status)}
}
