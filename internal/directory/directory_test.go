package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sms-email-bridge/internal/addressing"
	"github.com/wolfman30/sms-email-bridge/internal/routeerr"
)

func newCanon(t *testing.T) *addressing.Canonicalizer {
	t.Helper()
	canon, err := addressing.NewCanonicalizer("US")
	require.NoError(t, err)
	return canon
}

func TestLookupsBothDirections(t *testing.T) {
	dir, err := New([]Entry{
		{Phone: "+14155551212", Email: "alice@example.com"},
		{Phone: "(415) 555-1213", Email: " bob@example.com "},
	}, newCanon(t))
	require.NoError(t, err)

	for _, input := range []string{"+14155551212", "4155551212", "(415) 555-1212"} {
		email, err := dir.EmailForPhone(input)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", email)
	}

	number, err := dir.PhoneForEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, addressing.Number("+14155551212"), number)

	number, err = dir.PhoneForEmail("bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, addressing.Number("+14155551213"), number)
}

func TestEmailForPhoneMisses(t *testing.T) {
	dir, err := New([]Entry{{Phone: "+14155551212", Email: "alice@example.com"}}, newCanon(t))
	require.NoError(t, err)

	_, err = dir.EmailForPhone("4155551219")
	rerr, ok := routeerr.As(err)
	require.True(t, ok)
	assert.Equal(t, routeerr.NoEmailForNumber, rerr.Kind)
	assert.Equal(t, "+14155551219", rerr.Input)

	_, err = dir.EmailForPhone("nope")
	assert.True(t, routeerr.IsKind(err, routeerr.InvalidPhoneNumber))
}

func TestPhoneForEmailIsVerbatim(t *testing.T) {
	dir, err := New([]Entry{{Phone: "+14155551212", Email: "alice@example.com"}}, newCanon(t))
	require.NoError(t, err)

	_, err = dir.PhoneForEmail("Alice@example.com")
	rerr, ok := routeerr.As(err)
	require.True(t, ok)
	assert.Equal(t, routeerr.NoNumberForEmail, rerr.Kind)
	assert.Equal(t, "Alice@example.com", rerr.Input)
}

func TestNewRejectsBadEntries(t *testing.T) {
	_, err := New([]Entry{{Phone: "not-a-number", Email: "x@example.com"}}, newCanon(t))
	require.Error(t, err)
	assert.True(t, routeerr.IsKind(err, routeerr.InvalidPhoneNumber))

	_, err = New([]Entry{
		{Phone: "+14155551212", Email: "x@example.com"},
		{Phone: "4155551212", Email: "y@example.com"},
	}, newCanon(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")

	_, err = New(nil, nil)
	assert.Error(t, err)
}

func TestDuplicateTargetsResolveDeterministically(t *testing.T) {
	dir, err := New([]Entry{
		{Phone: "+14155551215", Email: "bob@example.com"},
		{Phone: "+14155551213", Email: "bob@example.com"},
	}, newCanon(t))
	require.NoError(t, err)

	number, err := dir.PhoneForEmail("bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, addressing.Number("+14155551213"), number)
	assert.Equal(t, 2, dir.Len())
}

func TestEntriesReturnsCopy(t *testing.T) {
	dir, err := New([]Entry{{Phone: "+14155551212", Email: "alice@example.com"}}, newCanon(t))
	require.NoError(t, err)

	entries := dir.Entries()
	entries[0].Email = "mallory@example.com"

	email, err := dir.EmailForPhone("+14155551212")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
	assert.Equal(t, "alice@example.com", dir.Entries()[0].Email)
}
