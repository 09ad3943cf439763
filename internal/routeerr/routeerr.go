// Package routeerr defines the errors that stop a message from being bridged
// between SMS and email. Each error renders the text shown to the sender and
// written to the warning log.
package routeerr

import (
	"errors"
	"fmt"
)

// Kind tags a routing failure.
type Kind int

const (
	InvalidPhoneNumber Kind = iota + 1
	InvalidPhoneNumberInEmail
	NoEmailForNumber
	NoNumberForEmail
	ProviderRejected
)

// AddressBookName is the file operators are pointed at when a lookup misses.
const AddressBookName = "address-book.cfg"

func (k Kind) String() string {
	switch k {
	case InvalidPhoneNumber:
		return "invalid_phone_number"
	case InvalidPhoneNumberInEmail:
		return "invalid_phone_number_in_email"
	case NoEmailForNumber:
		return "no_email_for_number"
	case NoNumberForEmail:
		return "no_number_for_email"
	case ProviderRejected:
		return "provider_rejected"
	default:
		return "unknown"
	}
}

// Error is a routing failure with the input that caused it.
type Error struct {
	Kind  Kind
	Input string
	// Provider and Reason are set for ProviderRejected only.
	Provider string
	Reason   string
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidPhoneNumber:
		return fmt.Sprintf("Invalid phone number in HTTP POST: %s", e.Input)
	case InvalidPhoneNumberInEmail:
		return fmt.Sprintf("Invalid phone number in email address: %s", e.Input)
	case NoEmailForNumber:
		return fmt.Sprintf("No email address is configured to receive SMS messages sent to '%s' - Try updating the '%s' file?", e.Input, AddressBookName)
	case NoNumberForEmail:
		return fmt.Sprintf("The email address '%s' is not configured to send SMS via this application - Try updating the '%s' file?", e.Input, AddressBookName)
	case ProviderRejected:
		if e.Reason == "" {
			return fmt.Sprintf("Error sending message to %s", e.Provider)
		}
		return fmt.Sprintf("Error sending message to %s: %s", e.Provider, e.Reason)
	default:
		return fmt.Sprintf("routing error (%s): %s", e.Kind, e.Input)
	}
}

func NewInvalidPhoneNumber(input string) *Error {
	return &Error{Kind: InvalidPhoneNumber, Input: input}
}

func NewInvalidPhoneNumberInEmail(email string) *Error {
	return &Error{Kind: InvalidPhoneNumberInEmail, Input: email}
}

func NewNoEmailForNumber(number string) *Error {
	return &Error{Kind: NoEmailForNumber, Input: number}
}

func NewNoNumberForEmail(email string) *Error {
	return &Error{Kind: NoNumberForEmail, Input: email}
}

// NewProviderRejected records a provider refusing the outbound message.
func NewProviderRejected(provider, reason string) *Error {
	return &Error{Kind: ProviderRejected, Input: reason, Provider: provider, Reason: reason}
}

// As extracts a routing error from err's chain.
func As(err error) (*Error, bool) {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

// IsKind reports whether err is a routing error of kind k.
func IsKind(err error, k Kind) bool {
	rerr, ok := As(err)
	return ok && rerr.Kind == k
}
