package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// windowScript counts a hit and starts the window on the first one in a single step.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	cli *redis.Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{cli: client.cli}
}

// Allow reports whether this hit is within limit for the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	n, err := windowScript.Run(ctx, r.cli, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(limit), nil
}

// SessionRouteKey scopes a counter to one browser session and one endpoint.
func SessionRouteKey(sessionID, route string) string {
	return "crazeai:rl:" + route + ":" + sessionID
}
