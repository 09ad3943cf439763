package addressing

import (
	"errors"
	"strings"

	"github.com/wolfman30/sms-email-bridge/internal/routeerr"
)

// Translator maps phone numbers onto addresses in the bridge's mail domain
// and back.
type Translator struct {
	canon  *Canonicalizer
	domain string
}

// NewTranslator builds a translator for domain.
func NewTranslator(canon *Canonicalizer, domain string) (*Translator, error) {
	if canon == nil {
		return nil, errors.New("addressing: canonicalizer required")
	}
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, errors.New("addressing: mail domain required")
	}
	return &Translator{canon: canon, domain: domain}, nil
}

// Domain returns the mail domain.
func (t *Translator) Domain() string { return t.domain }

// PhoneToEmail turns "+14155551212" (or any spelling of it) into
// "14155551212@<domain>".
func (t *Translator) PhoneToEmail(phoneText string) (string, error) {
	number, err := t.canon.Canonicalize(phoneText)
	if err != nil {
		return "", err
	}
	return number.Digits() + "@" + t.domain, nil
}

// EmailToPhone turns "14155551212@<domain>" into "+14155551212". The domain
// part is not checked.
func (t *Translator) EmailToPhone(email string) (Number, error) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return "", routeerr.NewInvalidPhoneNumberInEmail(email)
	}
	number, err := t.canon.Canonicalize("+" + parts[0])
	if err != nil {
		return "", routeerr.NewInvalidPhoneNumberInEmail(email)
	}
	return number, nil
}
