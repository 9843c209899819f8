package leavebalance

import (
	"github.com/kenjisciometa/shift-management-app-sub004/internal/middleware"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	auth gin.HandlerFunc,
	rbacService middleware.RBACService,
) {
	balances := r.Group("/leave-balances")
	balances.Use(auth)
	{
		balances.GET("", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionRead), handler.List)
		balances.GET("/me", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionRead), handler.Me)
		balances.PUT("", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionProvision), handler.Provision)
		balances.POST("/provision-defaults", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionProvision), handler.ProvisionYear)
	}

	employees := r.Group("/employees/:employee_id/leave-balances")
	employees.Use(auth)
	{
		employees.GET("", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionRead), handler.GetForEmployee)
		employees.POST("/reconcile", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionReconcile), handler.Reconcile)
	}
}
