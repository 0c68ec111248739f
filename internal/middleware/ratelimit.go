package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bartermarket/backend/internal/services"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimit allows each authenticated user at most limit requests per window
// for the wrapped routes. Counters live in Redis under ratelimit:<scope>:<user>.
// Without Redis every request passes.
func RateLimit(client *redis.Client, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if client == nil || !ok || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("ratelimit:%s:%s", scope, userID)
			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				zap.L().Warn("[RATELIMIT] counter unavailable", zap.String("scope", scope), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(r.Context(), key, window)
			}

			if count > int64(limit) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				services.SendServiceError(w, fmt.Errorf("%w: too many %s requests", services.ErrRateLimited, scope))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
