package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/contextutil"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	idempotencyLockTTL   = 30 * time.Second
	idempotencyReplayTTL = 24 * time.Hour
)

type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// storedResponse is what a replay sends back. Body is base64 in JSON so any
// payload survives the round trip.
type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

func IdempotencyCacheKey(path, userID, key string) string {
	return fmt.Sprintf("idemp:%s:%s:%s", path, userID, key)
}

// Idempotency replays the stored response of a POST that already succeeded
// with the same Idempotency-Key, and rejects a duplicate still in flight.
// Must run after AuthMiddleware so keys are per user.
func Idempotency(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		idempKey := c.GetHeader("Idempotency-Key")
		if rdb == nil || idempKey == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		logger := contextutil.GetLogger(ctx, zap.L().Named("middleware.idempotency"))
		cacheKey := IdempotencyCacheKey(c.FullPath(), c.GetString("user_id"), idempKey)
		lockKey := cacheKey + ":lock"

		if cached, err := rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var stored storedResponse
			if err := json.Unmarshal(cached, &stored); err == nil && stored.Status != 0 {
				logger.Debug("idempotent replay", zap.String("key", cacheKey), zap.Int("status", stored.Status))
				c.Header("Idempotent-Replayed", "true")
				c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
				c.Abort()
				return
			}
			logger.Warn("idempotency entry unreadable, ignoring it", zap.String("key", cacheKey))
		}

		isNew, err := rdb.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
		if err != nil {
			logger.Warn("idempotency lock failed, continuing without it", zap.Error(err))
			c.Next()
			return
		}
		if !isNew {
			response.Abort(c, http.StatusConflict, apperror.CodeConflict, "a request with this idempotency key is still being processed")
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rec

		c.Next()

		if status := rec.Status(); status >= 200 && status < 300 {
			payload, err := json.Marshal(storedResponse{Status: status, Body: rec.body.Bytes()})
			if err == nil {
				err = rdb.Set(ctx, cacheKey, payload, idempotencyReplayTTL).Err()
			}
			if err != nil {
				logger.Warn("idempotency store failed", zap.String("key", cacheKey), zap.Error(err))
			}
		}
		if err := rdb.Del(ctx, lockKey).Err(); err != nil {
			logger.Warn("idempotency unlock failed", zap.String("key", lockKey), zap.Error(err))
		}
	}
}
