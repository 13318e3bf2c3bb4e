package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeliveryStore remembers webhook deliveries that were fully processed so
// replays can be acknowledged without touching the order store. Only
// completed deliveries are recorded; the confirmation guard on the order row
// stays the authoritative idempotency check.
type DeliveryStore interface {
	// Seen reports whether key was recorded and has not expired.
	Seen(ctx context.Context, key string) (bool, error)

	// Record marks key as processed for ttl.
	Record(ctx context.Context, key string, ttl time.Duration) error
}

// WebhookKey builds the delivery key for a gateway event.
func WebhookKey(event, reference string) string {
	return fmt.Sprintf("paystack:webhook:%s:%s", event, reference)
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("delivery key is required")
	}
	return nil
}

// RedisStore keeps processed deliveries in Redis as expiring keys.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "delivery-store").Logger(),
	}
}

// Connect dials Redis and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to look up delivery")
		return false, fmt.Errorf("failed to look up %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Record(ctx context.Context, key string, ttl time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to record delivery")
		return fmt.Errorf("failed to record %s: %w", key, err)
	}
	return nil
}

// MemoryStore is an in-process DeliveryStore for tests and single-instance
// deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.records[key]
	if !ok {
		return false, nil
	}
	if !exp.After(s.now()) {
		delete(s.records, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Record(_ context.Context, key string, ttl time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.records {
		if !exp.After(now) {
			delete(s.records, k)
		}
	}
	s.records[key] = now.Add(ttl)
	return nil
}
