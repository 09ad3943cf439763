package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TwilioSignatureHeader carries Twilio's request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

var webhookValidate = validator.New(validator.WithRequiredStructEnabled())

// ValidateTwilioSignature validates that a request came from Twilio.
// webhookURL must be the full public URL Twilio was configured to call.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get(TwilioSignatureHeader)
	if signature == "" || authToken == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with the sorted form params.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// TwilioWebhookRequest represents an incoming Twilio SMS webhook.
// Body may be empty; From and To may not.
type TwilioWebhookRequest struct {
	MessageSid string
	AccountSid string
	From       string `validate:"required"`
	To         string `validate:"required"`
	Body       string
	NumMedia   string
}

// ErrMissingWebhookField is returned when a required Twilio field is absent.
var ErrMissingWebhookField = errors.New("messaging: missing required webhook field")

// ParseTwilioWebhook parses and validates a Twilio webhook request.
func ParseTwilioWebhook(r *http.Request) (*TwilioWebhookRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse form: %w", err)
	}

	req := &TwilioWebhookRequest{
		MessageSid: strings.TrimSpace(r.PostFormValue("MessageSid")),
		AccountSid: strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
		NumMedia:   r.PostFormValue("NumMedia"),
	}
	if err := webhookValidate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingWebhookField, verrs[0].Field())
		}
		return nil, fmt.Errorf("messaging: validate webhook: %w", err)
	}
	return req, nil
}
