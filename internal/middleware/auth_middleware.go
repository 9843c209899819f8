package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"
	rbacerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/rbac/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/contextutil"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const callerKey = "caller"

// CallerResolver turns verified token claims into an authorization identity.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, userID, companyID, employeeID string) (rbac.Caller, error)
}

func AuthMiddleware(secret string, resolver CallerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found {
			tokenString = ""
		}
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			abortWith(c, rbacerrors.ErrUnauthenticated)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			errObj := rbacerrors.ErrInvalidToken
			if errors.Is(err, jwt.ErrTokenExpired) {
				errObj = rbacerrors.ErrTokenExpired
			}
			abortWith(c, errObj)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortWith(c, rbacerrors.ErrInvalidToken)
			return
		}

		userID, _ := claims["user_id"].(string)
		companyID, _ := claims["company_id"].(string)
		employeeID, _ := claims["employee_id"].(string)
		if userID == "" || companyID == "" || employeeID == "" {
			abortWith(c, rbacerrors.ErrInvalidToken)
			return
		}

		caller, err := resolver.ResolveCaller(c.Request.Context(), userID, companyID, employeeID)
		if err != nil {
			contextutil.GetLogger(c.Request.Context(), nil).Debug("resolve caller failed",
				zap.String("employee_id", employeeID),
				zap.Error(err),
			)
			abortWith(c, rbacerrors.ErrUnauthenticated)
			return
		}

		SetCaller(c, caller)
		c.Set("user_id", userID)
		c.Set("user_id_validated", userID)

		// ContextLogger ran before the caller was known, so its logger has no user.
		ctx := contextutil.WithUserID(c.Request.Context(), userID)
		ctx = contextutil.WithLogger(ctx, contextutil.GetLogger(ctx, nil).With(
			zap.String("user_id", userID),
			zap.String("employee_id", caller.EmployeeID.String()),
		))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CallerFromContext returns the identity stored by AuthMiddleware, or the
// zero caller when the request was not authenticated.
func CallerFromContext(c *gin.Context) rbac.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return rbac.Caller{}
	}
	caller, _ := v.(rbac.Caller)
	return caller
}

// SetCaller stores an already resolved identity. Used by tests and internal callers.
func SetCaller(c *gin.Context, caller rbac.Caller) {
	c.Set(callerKey, caller)
	if caller.UserID != "" {
		c.Set("user_id", caller.UserID)
	}
	c.Set("employee_id", caller.EmployeeID.String())
	c.Set("company_id", caller.CompanyID.String())
	c.Set("role", caller.Role.String())
}

func abortWith(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Abort(c, httpErr.Status, httpErr.Code, httpErr.Message)
}
