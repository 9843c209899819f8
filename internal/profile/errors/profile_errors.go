package profileerrors

import (
	"net/http"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
)

var (
	ErrProfileNotFound = apperror.New(
		apperror.CodeNotFound,
		"employee profile not found",
		http.StatusNotFound,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrInvalidCompanyID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid company id",
		http.StatusBadRequest,
	)
	ErrProfileRoleInvalid = apperror.New(
		apperror.CodeForbidden,
		"employee profile has no valid role",
		http.StatusForbidden,
	)
)
