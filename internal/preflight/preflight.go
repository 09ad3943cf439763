// Package preflight checks operator configuration before the bridge accepts
// webhook traffic.
package preflight

import (
	"fmt"
	"strings"

	"github.com/wolfman30/sms-email-bridge/internal/config"
	"github.com/wolfman30/sms-email-bridge/internal/directory"
	"github.com/wolfman30/sms-email-bridge/internal/routeerr"
)

type requiredSetting struct {
	name  string
	value func(*config.Config) string
}

var (
	emailDomain        = requiredSetting{"EMAIL_DOMAIN", func(c *config.Config) string { return c.EmailDomain }}
	twilioAccountSID   = requiredSetting{"TWILIO_ACCOUNT_SID", func(c *config.Config) string { return c.TwilioAccountSID }}
	twilioAuthToken    = requiredSetting{"TWILIO_AUTH_TOKEN", func(c *config.Config) string { return c.TwilioAuthToken }}
	telnyxAPIKey       = requiredSetting{"TELNYX_API_KEY", func(c *config.Config) string { return c.TelnyxAPIKey }}
	sendGridAPIKey     = requiredSetting{"SENDGRID_API_KEY", func(c *config.Config) string { return c.SendGridAPIKey }}
	sendGridParseToken = requiredSetting{"SENDGRID_PARSE_TOKEN", func(c *config.Config) string { return c.SendGridParseToken }}
)

// requiredSettings lists the settings the selected providers need. Inbound
// email always arrives through SendGrid Inbound Parse, so its token is
// required whichever provider sends outbound mail.
func requiredSettings(cfg *config.Config) []requiredSetting {
	required := []requiredSetting{emailDomain}

	switch strings.ToLower(strings.TrimSpace(cfg.SMSProvider)) {
	case "telnyx":
		required = append(required, telnyxAPIKey)
		if cfg.TwilioValidateSignature {
			required = append(required, twilioAuthToken)
		}
	case "auto", "":
		// auto sends through Telnyx alone when Twilio is not configured.
		if strings.TrimSpace(cfg.TelnyxAPIKey) != "" &&
			strings.TrimSpace(cfg.TwilioAccountSID) == "" && strings.TrimSpace(cfg.TwilioAuthToken) == "" {
			if cfg.TwilioValidateSignature {
				required = append(required, twilioAuthToken)
			}
			break
		}
		required = append(required, twilioAccountSID, twilioAuthToken)
	default:
		required = append(required, twilioAccountSID, twilioAuthToken)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "ses", "stub":
	default:
		required = append(required, sendGridAPIKey)
	}

	return append(required, sendGridParseToken)
}

// MissingSettings returns the names of required settings that are empty, in
// declaration order.
func MissingSettings(cfg *config.Config) []string {
	if cfg == nil {
		cfg = &config.Config{}
	}
	var missing []string
	for _, s := range requiredSettings(cfg) {
		if strings.TrimSpace(s.value(cfg)) == "" {
			missing = append(missing, s.name)
		}
	}
	return missing
}

// HasDuplicateTargets reports whether two entries forward to the same email
// address.
func HasDuplicateTargets(entries []directory.Entry) bool {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		email := strings.TrimSpace(e.Email)
		if _, ok := seen[email]; ok {
			return true
		}
		seen[email] = struct{}{}
	}
	return false
}

// Report is the outcome of Check.
type Report struct {
	Missing          []string
	DuplicateTargets bool
}

// Check runs every preflight check.
func Check(cfg *config.Config, entries []directory.Entry) Report {
	return Report{
		Missing:          MissingSettings(cfg),
		DuplicateTargets: HasDuplicateTargets(entries),
	}
}

// OK reports whether routing may proceed.
func (r Report) OK() bool {
	return len(r.Missing) == 0 && !r.DuplicateTargets
}

// Problem renders the operator-facing message, or "" when OK. Missing
// settings are reported before duplicate targets.
func (r Report) Problem() string {
	if len(r.Missing) > 0 {
		return fmt.Sprintf("The following settings are missing: %s", strings.Join(r.Missing, ", "))
	}
	if r.DuplicateTargets {
		return fmt.Sprintf("Only one email address can be configured per phone number. "+
			"Please update the '%s' file so that each phone number matches exactly one email address.", routeerr.AddressBookName)
	}
	return ""
}
