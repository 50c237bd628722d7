package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps the pair as one JSON value under a single key, so several
// client processes on different hosts can share a session. SET and DEL are
// single commands, which gives whole-pair replace and clear semantics.
type RedisStore struct {
	rdb redis.UniversalClient
	key string
	log zerolog.Logger
}

// NewRedisStore returns a store using rdb. An empty key uses DefaultKey.
func NewRedisStore(rdb redis.UniversalClient, key string, log zerolog.Logger) *RedisStore {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key, log: log}
}

func (s *RedisStore) Get(ctx context.Context) (Pair, bool) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", s.key).Msg("credentials unavailable, treating as signed out")
		}
		return Pair{}, false
	}
	var pair Pair
	if err := json.Unmarshal(raw, &pair); err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("credentials corrupt, treating as signed out")
		return Pair{}, false
	}
	if !pair.Complete() {
		return Pair{}, false
	}
	return pair, true
}

func (s *RedisStore) Set(ctx context.Context, pair Pair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set credentials: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del credentials: %w", err)
	}
	return nil
}
