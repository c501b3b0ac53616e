package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// WindowCounter increments a fixed-window counter and returns its value.
type WindowCounter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type redisCounter struct{ rdb *redis.Client }

// NewRedisCounter returns nil for a nil client, which disables limiting.
func NewRedisCounter(rdb *redis.Client) WindowCounter {
	if rdb == nil {
		return nil
	}
	return redisCounter{rdb: rdb}
}

func (r redisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	// INCR and set expiry 2*window (safety)
	pipe := r.rdb.Pipeline()
	cnt := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return cnt.Val(), nil
}

// RateLimitConfig config for the fixed-window RPS limiter.
type RateLimitConfig struct {
	Counter        WindowCounter
	RPS            int           // 0 disables limiting
	KeyPrefix      string        // e.g. "rl:key:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
	Now            func() time.Time
}

// RateLimitMiddleware applies a fixed-window limit per API key, or per
// client IP when the request carried no key. Counter errors fail open.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:key:"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if cfg.RPS <= 0 || cfg.Counter == nil {
			// no limit configured or redis missing (dev): allow
			return next
		}
		return func(c echo.Context) error {
			subject, ok := APIKeyFromCtx(c)
			if !ok {
				subject = c.RealIP()
			}

			// fixed-window key: rl:key:{subject}:{window index}
			now := cfg.Now()
			window := now.UnixNano() / int64(cfg.Window)
			key := cfg.KeyPrefix + subject + ":" + strconv.FormatInt(window, 10)

			cnt, err := cfg.Counter.Incr(c.Request().Context(), key, cfg.Window*2)
			if err != nil {
				return next(c)
			}

			if cnt > int64(cfg.RPS) {
				if cfg.RetryAfterHint {
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					secs := int((remain + time.Second - 1) / time.Second)
					c.Response().Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				}
				return deny(c, http.StatusTooManyRequests, "Too many requests hit the API too quickly.")
			}
			return next(c)
		}
	}
}
