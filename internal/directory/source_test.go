package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wantEntries = []Entry{
	{Phone: "+14155551212", Email: "alice@example.com"},
	{Phone: "+14155551213", Email: "bob@example.com"},
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestINISource(t *testing.T) {
	path := writeFile(t, "address-book.cfg", "[users]\n+14155551212 = alice@example.com\n+14155551213 = bob@example.com\n")

	entries, err := INISource{Path: path, Section: "users"}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wantEntries, entries)
}

func TestINISourceMissingSection(t *testing.T) {
	path := writeFile(t, "address-book.cfg", "[admins]\n+14155551212 = alice@example.com\n")

	_, err := INISource{Path: path}.Load(context.Background())
	assert.True(t, errors.Is(err, ErrSourceNotFound))
}

func TestYAMLSource(t *testing.T) {
	path := writeFile(t, "address-book.yaml", "users:\n  \"+14155551213\": bob@example.com\n  \"+14155551212\": alice@example.com\n")

	entries, err := YAMLSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wantEntries, entries)
}

func TestYAMLSourceMalformed(t *testing.T) {
	path := writeFile(t, "address-book.yml", "users: [unclosed\n")

	_, err := YAMLSource{Path: path}.Load(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSourceNotFound))
}

func TestMissingFileIsNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "address-book.cfg")
	for _, src := range []Source{INISource{Path: missing}, YAMLSource{Path: missing}} {
		_, err := src.Load(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSourceNotFound))
		assert.Contains(t, err.Error(), "does not exist")
	}
}

func TestSourceFor(t *testing.T) {
	assert.IsType(t, YAMLSource{}, SourceFor("book.yaml", "users"))
	assert.IsType(t, YAMLSource{}, SourceFor("book.YML", "users"))
	assert.IsType(t, INISource{}, SourceFor("address-book.cfg", "users"))
}

func TestPostgresSource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT phone_number, email_address FROM address_book").
		WillReturnRows(pgxmock.NewRows([]string{"phone_number", "email_address"}).
			AddRow("+14155551212", "alice@example.com").
			AddRow("+14155551213", "bob@example.com"))

	src, err := NewPostgresSource(mock)
	require.NoError(t, err)
	entries, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wantEntries, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT phone_number").WillReturnError(errors.New("connection refused"))

	src, err := NewPostgresSource(mock)
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
