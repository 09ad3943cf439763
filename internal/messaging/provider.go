package messaging

import (
	"fmt"
	"strings"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

const (
	// SMSProviderAuto uses Twilio, falling back to Telnyx when both are configured.
	SMSProviderAuto = "auto"
	// SMSProviderTwilio forces the Twilio sender when credentials exist.
	SMSProviderTwilio = "twilio"
	// SMSProviderTelnyx forces the Telnyx sender when credentials exist.
	SMSProviderTelnyx = "telnyx"
)

// ProviderSelectionConfig captures the credentials required to build outbound senders.
type ProviderSelectionConfig struct {
	Preference       string
	TwilioAccountSID string
	TwilioAuthToken  string
	TelnyxAPIKey     string
	TelnyxProfileID  string
}

// BuildSMSSender instantiates a sender based on the preferred provider.
// It returns the sender, the provider that was selected, and a reason when no provider could be initialized.
func BuildSMSSender(cfg ProviderSelectionConfig, logger *logging.Logger) (bridge.SMSSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = SMSProviderAuto
	}

	missing := map[string]string{}
	var twilioSender bridge.SMSSender
	var telnyxSender bridge.SMSSender

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		twilioSender = NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger)
	} else {
		var reasons []string
		if cfg.TwilioAccountSID == "" {
			reasons = append(reasons, "TWILIO_ACCOUNT_SID missing")
		}
		if cfg.TwilioAuthToken == "" {
			reasons = append(reasons, "TWILIO_AUTH_TOKEN missing")
		}
		missing[SMSProviderTwilio] = strings.Join(reasons, ", ")
	}

	if cfg.TelnyxAPIKey != "" {
		telnyxSender = NewTelnyxSender(cfg.TelnyxAPIKey, cfg.TelnyxProfileID, logger)
	} else {
		missing[SMSProviderTelnyx] = "TELNYX_API_KEY missing"
	}

	switch preference {
	case SMSProviderTwilio:
		if twilioSender != nil {
			return twilioSender, SMSProviderTwilio, ""
		}
		return nil, "", missing[SMSProviderTwilio]
	case SMSProviderTelnyx:
		if telnyxSender != nil {
			return telnyxSender, SMSProviderTelnyx, ""
		}
		return nil, "", missing[SMSProviderTelnyx]
	case SMSProviderAuto:
	default:
		return nil, "", fmt.Sprintf("unknown sms provider %q", preference)
	}

	if twilioSender != nil && telnyxSender != nil {
		return NewFailoverSender(twilioSender, telnyxSender, logger), SMSProviderTwilio + "+" + SMSProviderTelnyx, ""
	}
	if twilioSender != nil {
		return twilioSender, SMSProviderTwilio, ""
	}
	if telnyxSender != nil {
		return telnyxSender, SMSProviderTelnyx, ""
	}
	return nil, "", fmt.Sprintf("%s: %s; %s: %s",
		SMSProviderTwilio, missing[SMSProviderTwilio],
		SMSProviderTelnyx, missing[SMSProviderTelnyx])
}
