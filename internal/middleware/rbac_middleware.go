package middleware

import (
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"
	rbacerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/rbac/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"

	"github.com/gin-gonic/gin"
)

// RBACService is anything that can decide a role/resource/action triple.
type RBACService interface {
	Enforce(req rbac.EnforceRequest) (bool, error)
}

func RBACAuthorize(service RBACService, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFromContext(c)
		if !caller.Authenticated() {
			abortWith(c, rbacerrors.ErrUnauthenticated)
			return
		}

		allowed, err := service.Enforce(rbac.EnforceRequest{
			Role:     caller.Role,
			Resource: resource,
			Action:   action,
		})
		if err != nil {
			abortWith(c, apperror.ErrInternal)
			return
		}
		if !allowed {
			abortWith(c, rbacerrors.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}
