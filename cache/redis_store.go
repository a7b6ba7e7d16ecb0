package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/madspark/madspark/core"
)

// RedisStore is the optional shared Response Cache backend, wired to
// core.RedisClient's DB-isolation convention (RedisDBCache, DESIGN.md
// package-layout plan for cache/).
type RedisStore struct {
	client *core.RedisClient
	ttl    time.Duration
	logger core.Logger
	locks  *keyLocker
}

// NewRedisStore connects to redisURL using core.RedisDBCache for isolation.
func NewRedisStore(redisURL string, ttl time.Duration, logger core.Logger) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	client, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL:  redisURL,
		DB:        core.RedisDBCache,
		Namespace: "madspark:cache",
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger, locks: newKeyLocker()}, nil
}

func (s *RedisStore) Lock(key string) func() {
	return s.locks.Lock(key)
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		s.logger.Warn("cache read error", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Warn("cache decode error", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false, nil
	}
	return &entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value interface{}, tokensIn, tokensOut int) error {
	raw, err := marshalValue(key, value)
	if err != nil {
		return err
	}
	entry := Entry{Value: raw, TokensIn: tokensIn, TokensOut: tokensOut, CreatedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return &core.CacheTypeError{Key: key, Want: "json-serializable entry", Got: "unknown"}
	}
	if err := s.client.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("cache write error", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
