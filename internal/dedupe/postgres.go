package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore records claimed keys in the processed_webhooks table created
// by cmd/migrate. A key older than the TTL may be claimed again.
type PostgresStore struct {
	db  execer
	ttl time.Duration
}

// NewPostgresStore wraps a pgx pool (or anything with its Exec method).
func NewPostgresStore(db execer, ttl time.Duration) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("dedupe: postgres pool required")
	}
	return &PostgresStore{db: db, ttl: normalizeTTL(ttl)}, nil
}

const claimWebhook = `
	INSERT INTO processed_webhooks (message_key, claimed_at)
	VALUES ($1, now())
	ON CONFLICT (message_key) DO UPDATE SET claimed_at = now()
	WHERE $2::bigint > 0 AND processed_webhooks.claimed_at < now() - make_interval(secs => $2::bigint)
`

// Claim implements Store.
func (s *PostgresStore) Claim(ctx context.Context, key string) (bool, error) {
	ct, err := s.db.Exec(ctx, claimWebhook, key, int64(s.ttl/time.Second))
	if err != nil {
		return false, fmt.Errorf("%w: claim: %v", ErrStoreUnavailable, err)
	}
	return ct.RowsAffected() > 0, nil
}

// Release implements Store.
func (s *PostgresStore) Release(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM processed_webhooks WHERE message_key = $1`, key); err != nil {
		return fmt.Errorf("%w: release: %v", ErrStoreUnavailable, err)
	}
	return nil
}
