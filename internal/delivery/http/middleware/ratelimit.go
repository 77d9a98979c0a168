package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	h "eventpass/internal/delivery/http/helpers"
)

// counter is the slice of the redis client the limiter uses.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimit returns a fixed-window limiter backed by redis: limit requests
// per window per caller, counted with INCR on a key that expires with the
// window. The key is the authenticated user ID when present, the remote
// host otherwise. When rdb is nil or redis is unreachable the limiter
// fails open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	var c counter
	if rdb != nil {
		c = rdb
	}
	return rateLimit(c, limit, window, logger)
}

func rateLimit(c counter, limit int, window time.Duration, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if c == nil {
				next(w, r)
				return
			}

			caller, ok := UserIDFromContext(r.Context())
			if !ok {
				caller = r.RemoteAddr
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					caller = host
				}
			}
			key := fmt.Sprintf("ratelimit:%s:%s", r.URL.Path, caller)

			ctx := r.Context()
			count, err := c.Incr(ctx, key).Result()
			if err != nil {
				logger.WarnContext(ctx, "rate limiter unavailable", "err", err)
				next(w, r)
				return
			}
			if count == 1 {
				c.Expire(ctx, key, window)
			}

			if count > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window/time.Second)))
				h.WriteJSONError(w, http.StatusTooManyRequests, h.ErrCodeTooManyRequests, "rate limit exceeded")
				return
			}
			next(w, r)
		}
	}
}
