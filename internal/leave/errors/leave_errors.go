package leaveerrors

import (
	"net/http"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
)

var (
	ErrLeaveNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave request not found",
		http.StatusNotFound,
	)
	ErrInvalidTransition = apperror.New(
		apperror.CodeInvalidState,
		"leave request is no longer pending",
		http.StatusConflict,
	)
	ErrConcurrentTransition = apperror.New(
		apperror.CodeConflict,
		"leave request was changed by another reviewer, please reload",
		http.StatusConflict,
	)
	ErrLeaveOverlap = apperror.New(
		apperror.CodeConflict,
		"leave already exists in overlapping period",
		http.StatusConflict,
	)
	ErrSubmitForOther = apperror.New(
		apperror.CodeForbidden,
		"leave can only be submitted for yourself",
		http.StatusForbidden,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrInvalidLeaveType = apperror.New(
		apperror.CodeInvalidInput,
		"leave_type must be one of vacation, sick, personal, bereavement, jury_duty, other",
		http.StatusBadRequest,
	)
	ErrInvalidStatus = apperror.New(
		apperror.CodeInvalidInput,
		"status must be one of pending, approved, rejected, cancelled",
		http.StatusBadRequest,
	)
	ErrInvalidDecision = apperror.New(
		apperror.CodeInvalidInput,
		"decision must be approve or reject",
		http.StatusBadRequest,
	)
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrInvalidDateRange = apperror.New(
		apperror.CodeInvalidInput,
		"start_date must be before or equal end_date",
		http.StatusBadRequest,
	)
	ErrCrossYear = apperror.New(
		apperror.CodeInvalidInput,
		"start_date and end_date must be in the same year",
		http.StatusBadRequest,
	)
	ErrHalfDayRange = apperror.New(
		apperror.CodeInvalidInput,
		"half_day is only allowed when start_date equals end_date",
		http.StatusBadRequest,
	)
	ErrInvalidSortField = apperror.New(
		apperror.CodeInvalidInput,
		"unsupported sort field",
		http.StatusBadRequest,
	)
)
