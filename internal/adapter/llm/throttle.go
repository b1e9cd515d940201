package llm

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle caps aggregate outbound LLM call rate across all worker replicas
// with a Redis-backed token bucket. The Lua script keeps refill and take
// atomic so concurrent workers never double-spend.
type Throttle struct {
	rdb      *redis.Client
	script   *redis.Script
	capacity int64
	refill   float64 // tokens per second
}

const luaTokenBucket = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local tokens = tonumber(redis.call('HGET', key, 'tokens') or capacity)
local ts = tonumber(redis.call('HGET', key, 'ts') or now)
tokens = math.min(capacity, tokens + (now - ts) * refill_rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', key, 'tokens', tokens, 'ts', now)
redis.call('EXPIRE', key, 120)
return {allowed, tostring(tokens)}
`

// NewThrottle builds a Throttle allowing perMinute calls per minute.
// Returns nil when rdb is nil or perMinute is non-positive, which disables
// throttling at the client.
func NewThrottle(rdb *redis.Client, perMinute int) *Throttle {
	if rdb == nil || perMinute <= 0 {
		return nil
	}
	return &Throttle{
		rdb:      rdb,
		script:   redis.NewScript(luaTokenBucket),
		capacity: int64(perMinute),
		refill:   float64(perMinute) / 60.0,
	}
}

// Allow takes one token for op. When denied, retryAfter estimates the wait
// until a token refills.
func (t *Throttle) Allow(ctx context.Context, op string) (allowed bool, retryAfter time.Duration, err error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	res, err := t.script.Run(ctx, t.rdb, []string{"llm:bucket:" + op}, t.capacity, t.refill, now).Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) >= 1 {
		if n, ok := res[0].(int64); ok && n == 1 {
			return true, 0, nil
		}
	}
	wait := time.Duration(math.Ceil(1/t.refill)) * time.Second
	return false, wait, nil
}
