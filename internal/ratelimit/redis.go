package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// allowScript keeps one sorted set of request timestamps (ms) per user.
// Returns {allowed, window, wait_ms}; window 1 = minute, 2 = hour.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local per_minute = tonumber(ARGV[2])
local per_hour = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - 3600000))

local in_minute = redis.call('ZCOUNT', key, now - 60000, '+inf')
if in_minute >= per_minute then
  local oldest = redis.call('ZRANGEBYSCORE', key, now - 60000, '+inf', 'WITHSCORES', 'LIMIT', 0, 1)
  return {0, 1, 60000 - (now - tonumber(oldest[2]))}
end

local in_hour = redis.call('ZCARD', key)
if in_hour >= per_hour then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, 2, 3600000 - (now - tonumber(oldest[2]))}
end

redis.call('ZADD', key, ARGV[1], member)
redis.call('PEXPIRE', key, 3600000)
return {1, 0, 0}
`)

// Redis shares windows across replicas. The script makes check-and-record
// atomic per user.
type Redis struct {
	client redis.UniversalClient
	limits Limits
	prefix string
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient, limits Limits, now func() time.Time) *Redis {
	if now == nil {
		now = time.Now
	}
	return &Redis{client: client, limits: limits.atLeastOne(), prefix: "tradescope:ratelimit:", now: now}
}

func (r *Redis) Limits() Limits { return r.limits }

func (r *Redis) key(user string) string { return r.prefix + user }

func (r *Redis) Allow(ctx context.Context, user string) error {
	now := r.now().UnixMilli()
	res, err := allowScript.Run(ctx, r.client, []string{r.key(user)},
		now, r.limits.PerMinute, r.limits.PerHour, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	if res[0] == 1 {
		return nil
	}
	window := WindowMinute
	if res[1] == 2 {
		window = WindowHour
	}
	return &ExceededError{Window: window, RetryAfter: time.Duration(res[2]) * time.Millisecond}
}

func (r *Redis) Remaining(ctx context.Context, user string) (Remaining, error) {
	now := r.now().UnixMilli()
	key := r.key(user)
	var minute, hour *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", now-time.Hour.Milliseconds()))
		minute = p.ZCount(ctx, key, fmt.Sprintf("%d", now-time.Minute.Milliseconds()), "+inf")
		hour = p.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return Remaining{}, fmt.Errorf("rate limit remaining: %w", err)
	}
	return Remaining{
		PerMinute: r.limits.PerMinute - int(minute.Val()),
		PerHour:   r.limits.PerHour - int(hour.Val()),
	}, nil
}
