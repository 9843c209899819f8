package middleware

import (
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/contextutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContextLogger assigns the request id and attaches a scoped logger to the
// request context so services can log without knowing about gin.
func ContextLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Header("X-Request-ID", rid)
		c.Set("request_id", rid)

		reqLogger := logger.With(zap.String("request_id", rid))

		ctx := c.Request.Context()
		ctx = contextutil.WithRequestID(ctx, rid)
		// AuthMiddleware adds user_id once the token is verified.
		if uid := c.GetString("user_id_validated"); uid != "" {
			reqLogger = reqLogger.With(zap.String("user_id", uid))
			ctx = contextutil.WithUserID(ctx, uid)
		}
		ctx = contextutil.WithLogger(ctx, reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
