package leavebalanceerrors

import (
	"net/http"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
)

const CodeBalanceNotProvisioned = "BALANCE_NOT_PROVISIONED"

var (
	ErrBalanceNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave balance not found",
		http.StatusNotFound,
	)
	ErrEmployeeNotFound = apperror.New(
		apperror.CodeNotFound,
		"employee not found",
		http.StatusNotFound,
	)
	ErrBalanceNotProvisioned = apperror.New(
		CodeBalanceNotProvisioned,
		"no leave balance has been provisioned for this employee, leave type and year",
		http.StatusBadRequest,
	)
	ErrConcurrentUpdate = apperror.New(
		apperror.CodeConflict,
		"leave balance was modified concurrently, please retry",
		http.StatusConflict,
	)
	ErrInvalidLeaveType = apperror.New(
		apperror.CodeInvalidInput,
		"leave_type must be one of vacation, sick, personal, bereavement, jury_duty, other",
		http.StatusBadRequest,
	)
	ErrInvalidYear = apperror.New(
		apperror.CodeInvalidInput,
		"year is invalid",
		http.StatusBadRequest,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"employee_id is invalid",
		http.StatusBadRequest,
	)
	ErrInvalidDays = apperror.New(
		apperror.CodeInvalidInput,
		"day count must be greater than zero",
		http.StatusBadRequest,
	)
	ErrInvalidEntitlement = apperror.New(
		apperror.CodeInvalidInput,
		"entitled_days must be zero or positive in half-day steps",
		http.StatusBadRequest,
	)
	ErrInvalidSortField = apperror.New(
		apperror.CodeInvalidInput,
		"unsupported sort field",
		http.StatusBadRequest,
	)
)
