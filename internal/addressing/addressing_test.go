package addressing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sms-email-bridge/internal/routeerr"
)

func newTestTranslator(t *testing.T) *Translator {
	t.Helper()
	canon, err := NewCanonicalizer("US")
	require.NoError(t, err)
	tr, err := NewTranslator(canon, "sms.example.com")
	require.NoError(t, err)
	return tr
}

func TestCanonicalizeEquivalentSpellings(t *testing.T) {
	for _, input := range []string{"+14155551212", "(415) 555-1212", "4155551212", " 415.555.1212 ", "1-415-555-1212"} {
		t.Run(input, func(t *testing.T) {
			got, err := Canonicalize(input, "US")
			require.NoError(t, err)
			assert.Equal(t, Number("+14155551212"), got)
		})
	}
}

func TestCanonicalizeRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "   ", "42", "+42", "hello", "555-1212", "(015) 555-1212"} {
		t.Run(input, func(t *testing.T) {
			_, err := Canonicalize(input, "US")
			require.Error(t, err)
			rerr, ok := routeerr.As(err)
			require.True(t, ok)
			assert.Equal(t, routeerr.InvalidPhoneNumber, rerr.Kind)
			assert.Equal(t, input, rerr.Input)
		})
	}
}

func TestNewCanonicalizer(t *testing.T) {
	canon, err := NewCanonicalizer("")
	require.NoError(t, err)
	assert.Equal(t, "US", canon.Region())

	canon, err = NewCanonicalizer("gb")
	require.NoError(t, err)
	got, err := canon.Canonicalize("020 7946 0018")
	require.NoError(t, err)
	assert.Equal(t, Number("+442079460018"), got)

	_, err = NewCanonicalizer("ZZ")
	require.Error(t, err)
}

func TestNumberDigits(t *testing.T) {
	assert.Equal(t, "14155551212", Number("+14155551212").Digits())
}

func TestPhoneToEmail(t *testing.T) {
	tr := newTestTranslator(t)
	for _, input := range []string{"+14155551212", "(415) 555-1212", "4155551212"} {
		got, err := tr.PhoneToEmail(input)
		require.NoError(t, err)
		assert.Equal(t, "14155551212@sms.example.com", got)
	}

	_, err := tr.PhoneToEmail("not a number")
	assert.True(t, routeerr.IsKind(err, routeerr.InvalidPhoneNumber))
}

func TestEmailToPhone(t *testing.T) {
	tr := newTestTranslator(t)

	got, err := tr.EmailToPhone("14155551212@sms.example.com")
	require.NoError(t, err)
	assert.Equal(t, Number("+14155551212"), got)

	for _, input := range []string{"42@sms.example.com", "sms.example.com", "@sms.example.com", "1415@555@sms.example.com", "alice@sms.example.com"} {
		t.Run(input, func(t *testing.T) {
			_, err := tr.EmailToPhone(input)
			rerr, ok := routeerr.As(err)
			require.True(t, ok)
			assert.Equal(t, routeerr.InvalidPhoneNumberInEmail, rerr.Kind)
			assert.Equal(t, input, rerr.Input)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tr := newTestTranslator(t)
	for _, input := range []string{"+14155551212", "(212) 555-0100", "6175550123"} {
		email, err := tr.PhoneToEmail(input)
		require.NoError(t, err)
		back, err := tr.EmailToPhone(email)
		require.NoError(t, err)
		want, err := Canonicalize(input, "US")
		require.NoError(t, err)
		assert.Equal(t, want, back)
	}
}

func TestNewTranslatorRequiresDomain(t *testing.T) {
	canon, err := NewCanonicalizer("US")
	require.NoError(t, err)
	_, err = NewTranslator(canon, " ")
	assert.Error(t, err)
	_, err = NewTranslator(nil, "sms.example.com")
	assert.Error(t, err)
}
