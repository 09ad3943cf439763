package messaging

import (
	"context"
	"errors"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

// FailoverSender attempts a primary send, then falls back to a secondary provider on error.
type FailoverSender struct {
	primary   bridge.SMSSender
	secondary bridge.SMSSender
	logger    *logging.Logger
}

// NewFailoverSender builds a failover sender.
func NewFailoverSender(primary, secondary bridge.SMSSender, logger *logging.Logger) *FailoverSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverSender{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

var _ bridge.SMSSender = (*FailoverSender)(nil)

// Name reports the primary provider; rejections carry the provider that
// actually declined.
func (f *FailoverSender) Name() string {
	if f == nil || f.primary == nil {
		return "failover"
	}
	return f.primary.Name()
}

// SendSMS tries the primary provider first, then the secondary on failure.
func (f *FailoverSender) SendSMS(ctx context.Context, msg bridge.OutboundSMS) (string, error) {
	if f == nil || f.primary == nil {
		return "", errors.New("messaging: failover primary sender not configured")
	}
	id, err := f.primary.SendSMS(ctx, msg)
	if err == nil || f.secondary == nil {
		return id, err
	}
	f.logger.Warn("primary sms send failed; attempting fallback",
		"provider", f.primary.Name(),
		"fallback", f.secondary.Name(),
		"error", err,
		"to", msg.To,
	)
	id, fallbackErr := f.secondary.SendSMS(ctx, msg)
	if fallbackErr != nil {
		f.logger.Error("fallback sms send failed",
			"provider", f.secondary.Name(),
			"error", fallbackErr,
			"to", msg.To,
		)
		return "", fallbackErr
	}
	return id, nil
}
