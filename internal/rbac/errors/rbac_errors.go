package rbacerrors

import (
	"net/http"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
)

var (
	ErrUnauthenticated = apperror.New(
		apperror.CodeUnauthorized,
		"authentication is required",
		http.StatusUnauthorized,
	)
	ErrInvalidToken = apperror.New(
		apperror.CodeUnauthorized,
		"invalid token",
		http.StatusUnauthorized,
	)
	ErrTokenExpired = apperror.New(
		apperror.CodeUnauthorized,
		"token has expired",
		http.StatusUnauthorized,
	)
	ErrPrivilegedOnly = apperror.New(
		apperror.CodeForbidden,
		"this action requires a manager, admin or owner role",
		http.StatusForbidden,
	)
	ErrAdminOnly = apperror.New(
		apperror.CodeForbidden,
		"this action requires an admin or owner role",
		http.StatusForbidden,
	)
	ErrNotOwner = apperror.New(
		apperror.CodeForbidden,
		"you can only access your own records",
		http.StatusForbidden,
	)
	ErrPermissionDenied = apperror.New(
		apperror.CodeForbidden,
		"you do not have permission to perform this action",
		http.StatusForbidden,
	)
	ErrInvalidRole = apperror.New(
		apperror.CodeInvalidInput,
		"unknown role",
		http.StatusBadRequest,
	)
)
