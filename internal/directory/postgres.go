package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const selectAddressBook = `SELECT phone_number, email_address FROM address_book ORDER BY phone_number`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads entries from the address_book table created by
// cmd/migrate.
type PostgresSource struct {
	db querier
}

// NewPostgresSource wraps a pgx pool (or anything with its Query method).
func NewPostgresSource(db querier) (*PostgresSource, error) {
	if db == nil {
		return nil, errors.New("directory: postgres pool required")
	}
	return &PostgresSource{db: db}, nil
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx, selectAddressBook)
	if err != nil {
		return nil, fmt.Errorf("directory: query address_book: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Phone, &e.Email)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("directory: scan address_book: %w", err)
	}
	return entries, nil
}
