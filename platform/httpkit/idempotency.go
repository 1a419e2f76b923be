package httpkit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleet_service_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// IdempotencyHeader is the request header clients set to make a write safe to repeat.
const IdempotencyHeader = "Idempotency-Key"

const idempotencyKeyPrefix = "idem:"

// IdempotencyGuard rejects a repeated write carrying the same Idempotency-Key
// while the first one is still remembered. Keys are scoped per caller.
type IdempotencyGuard struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewIdempotencyGuard creates a guard backed by rdb. Keys expire after ttl.
func NewIdempotencyGuard(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logger.Discard()
	}
	return &IdempotencyGuard{rdb: rdb, ttl: ttl, log: log}
}

// Claim records key for scope. It returns false if the key was already claimed.
func (g *IdempotencyGuard) Claim(ctx context.Context, scope, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.redisKey(scope, key), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release forgets a claimed key so the client may retry.
func (g *IdempotencyGuard) Release(ctx context.Context, scope, key string) error {
	if err := g.rdb.Del(ctx, g.redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (g *IdempotencyGuard) redisKey(scope, key string) string {
	return idempotencyKeyPrefix + scope + ":" + key
}

// Middleware enforces the guard on requests that carry the header.
// Reads and requests without the header pass through untouched. A claimed key is
// released again when the handler ends with a server error.
func (g *IdempotencyGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		scope := "anonymous"
		if id := GetIdentity(c); id.IsAuthenticated() {
			scope = id.UserID().String()
		}

		claimed, err := g.Claim(c.Request.Context(), scope, key)
		if err != nil {
			// Redis being unavailable must not block writes.
			g.log.Warn("idempotency_unavailable", "error", err.Error())
			c.Next()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
				Error: "request with this idempotency key was already received",
				Code:  "duplicate_request",
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			if err := g.Release(context.WithoutCancel(c.Request.Context()), scope, key); err != nil {
				g.log.Warn("idempotency_release_failed", "error", err.Error())
			}
		}
	}
}
