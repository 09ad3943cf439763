// Package dedupe suppresses repeated webhook deliveries of the same inbound
// message. Providers redeliver when a response is slow or lost; a claimed key
// is never routed a second time while it is remembered.
package dedupe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

// ErrStoreUnavailable is returned when the backing store cannot be reached.
var ErrStoreUnavailable = errors.New("dedupe: store unavailable")

const keyPrefix = "smsbridge:dedupe:"

// DefaultTTL replaces a non-positive TTL so that every store forgets keys.
const DefaultTTL = 24 * time.Hour

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// Store claims message keys. Claim reports true the first time a key is seen
// within the TTL and false for every repeat. Release forgets a key so that a
// provider retry after a failed route is processed again.
type Store interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Key namespaces a provider message identifier by direction.
func Key(direction, messageID string) string {
	return direction + ":" + strings.TrimSpace(messageID)
}

// RedisStore claims keys with SETNX so that every replica shares one view.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// RedisConfig describes the connection to Redis.
type RedisConfig struct {
	Addr     string
	Password string
	TLS      bool
}

// NewRedisClient builds a go-redis client from cfg.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisStore{client: client, ttl: normalizeTTL(ttl), logger: logger}
}

// Claim implements Store.
func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	if s == nil || s.client == nil {
		return false, ErrStoreUnavailable
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		s.logger.Error("dedupe claim failed", "key", key, "error", err)
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return ErrStoreUnavailable
	}
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// MemoryStore is a process-local Store for single-instance deployments.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryStore builds an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:  normalizeTTL(ttl),
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Claim implements Store.
func (s *MemoryStore) Claim(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.seen[key] = now.Add(s.ttl)
	s.sweep(now)
	return true, nil
}

// Release implements Store.
func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.seen, key)
	s.mu.Unlock()
	return nil
}

// sweep drops expired keys. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, expiry := range s.seen {
		if !now.Before(expiry) {
			delete(s.seen, k)
		}
	}
}
