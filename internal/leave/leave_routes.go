package leave

import (
	"github.com/kenjisciometa/shift-management-app-sub004/internal/middleware"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	auth gin.HandlerFunc,
	userLimit gin.HandlerFunc,
	rbacService middleware.RBACService,
	rdb *redis.Client,
) {
	leaves := r.Group("/leaves")
	leaves.Use(auth, userLimit)
	{
		leaves.GET("", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionRead), handler.List)
		leaves.GET("/:id", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionRead), handler.GetByID)
		leaves.POST("",
			middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionSubmit),
			middleware.Idempotency(rdb),
			handler.Create,
		)
		leaves.POST("/:id/approve", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionReview), handler.Approve)
		leaves.POST("/:id/reject", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionReview), handler.Reject)
		leaves.POST("/:id/cancel", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionCancel), handler.Cancel)
	}
}
