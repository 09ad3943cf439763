// Package addressing canonicalizes phone numbers and translates between
// phone numbers and the email addresses that stand in for them.
package addressing

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/wolfman30/sms-email-bridge/internal/routeerr"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "US"

// Number is a phone number in E.164 form, e.g. +14155551212.
type Number string

func (n Number) String() string { return string(n) }

// Digits returns the number without its leading plus.
func (n Number) Digits() string { return strings.TrimPrefix(string(n), "+") }

// Canonicalize parses free-form phone text into E.164. Numbers without a
// country code are read under region.
func Canonicalize(text, region string) (Number, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", routeerr.NewInvalidPhoneNumber(text)
	}
	parsed, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return "", routeerr.NewInvalidPhoneNumber(text)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", routeerr.NewInvalidPhoneNumber(text)
	}
	return Number(phonenumbers.Format(parsed, phonenumbers.E164)), nil
}

// Canonicalizer binds a default region.
type Canonicalizer struct {
	region string
}

// NewCanonicalizer validates region and returns a canonicalizer for it.
func NewCanonicalizer(region string) (*Canonicalizer, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	if phonenumbers.GetCountryCodeForRegion(region) == 0 {
		return nil, fmt.Errorf("addressing: unknown region %q", region)
	}
	return &Canonicalizer{region: region}, nil
}

// Region returns the default region.
func (c *Canonicalizer) Region() string { return c.region }

// Canonicalize implements Canonicalize for the bound region.
func (c *Canonicalizer) Canonicalize(text string) (Number, error) {
	return Canonicalize(text, c.region)
}
