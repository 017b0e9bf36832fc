package window

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisStore implements Store on a Redis sorted set per key, scored by unix
// milliseconds. Old members are trimmed on every access, mirroring the lazy
// eviction of the in-memory store, and the whole set expires with the
// horizon so idle keys vanish on their own.
type redisStore struct{ rc *redis.Client }

// NewRedisStore creates a Store backed by the given Redis client, for
// multi-instance deployments where one IP's attempts may land on several
// API replicas.
func NewRedisStore(rc *redis.Client) Store { return &redisStore{rc: rc} }

var luaObserve = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return redis.call('ZCARD', KEYS[1])
`)

func (s *redisStore) Observe(ctx context.Context, key string, at time.Time, horizon time.Duration) (int, error) {
	k := "win:" + key
	cutoff := strconv.FormatInt(at.Add(-horizon).UnixMilli(), 10)
	score := strconv.FormatInt(at.UnixMilli(), 10)
	member := uuid.NewString()
	res, err := luaObserve.Run(ctx, s.rc, []string{k}, cutoff, score, member, horizon.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	n, ok := res.(int64)
	if !ok {
		return 0, nil
	}
	return int(n), nil
}

func (s *redisStore) Count(ctx context.Context, key string, now time.Time, horizon time.Duration) (int, error) {
	k := "win:" + key
	if err := s.rc.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(now.Add(-horizon).UnixMilli(), 10)).Err(); err != nil {
		return 0, err
	}
	n, err := s.rc.ZCard(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
