// Package directory holds the address book that pairs each bridged phone
// number with exactly one email address.
package directory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/sms-email-bridge/internal/addressing"
	"github.com/wolfman30/sms-email-bridge/internal/routeerr"
)

// Entry is one address book line as configured: SMS to Phone forwards to
// Email, and mail from Email is sent as SMS from Phone.
type Entry struct {
	Phone string
	Email string
}

// Directory answers lookups in both directions. It is read-only after New.
type Directory struct {
	canon   *addressing.Canonicalizer
	entries []Entry
	byPhone map[addressing.Number]string
	byEmail map[string]addressing.Number
}

// New indexes entries. Every phone key must canonicalize, and no two keys may
// name the same number. Duplicate email targets are left for preflight to
// report; the entry whose number sorts first answers reverse lookups.
func New(entries []Entry, canon *addressing.Canonicalizer) (*Directory, error) {
	if canon == nil {
		return nil, fmt.Errorf("directory: canonicalizer required")
	}
	d := &Directory{
		canon:   canon,
		entries: make([]Entry, 0, len(entries)),
		byPhone: make(map[addressing.Number]string, len(entries)),
		byEmail: make(map[string]addressing.Number, len(entries)),
	}
	for _, e := range entries {
		e.Email = strings.TrimSpace(e.Email)
		number, err := canon.Canonicalize(e.Phone)
		if err != nil {
			return nil, fmt.Errorf("directory: entry %q: %w", e.Phone, err)
		}
		if _, dup := d.byPhone[number]; dup {
			return nil, fmt.Errorf("directory: entry %q: number %s configured more than once", e.Phone, number)
		}
		d.byPhone[number] = e.Email
		d.entries = append(d.entries, e)
	}

	numbers := make([]addressing.Number, 0, len(d.byPhone))
	for n := range d.byPhone {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for _, n := range numbers {
		email := d.byPhone[n]
		if _, taken := d.byEmail[email]; !taken {
			d.byEmail[email] = n
		}
	}
	return d, nil
}

// EmailForPhone answers "which address receives SMS sent to this number?".
func (d *Directory) EmailForPhone(phoneText string) (string, error) {
	number, err := d.canon.Canonicalize(phoneText)
	if err != nil {
		return "", err
	}
	email, ok := d.byPhone[number]
	if !ok {
		return "", routeerr.NewNoEmailForNumber(number.String())
	}
	return email, nil
}

// PhoneForEmail answers "which number does this address send SMS from?".
// Addresses are compared exactly as configured.
func (d *Directory) PhoneForEmail(email string) (addressing.Number, error) {
	number, ok := d.byEmail[email]
	if !ok {
		return "", routeerr.NewNoNumberForEmail(email)
	}
	return number, nil
}

// Entries returns a copy of the configured entries.
func (d *Directory) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of configured entries.
func (d *Directory) Len() int { return len(d.entries) }
