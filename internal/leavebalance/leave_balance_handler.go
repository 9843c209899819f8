package leavebalance

import (
	"net/http"
	"strconv"
	"time"

	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/middleware"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/query"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
	now     func() time.Time
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("leavebalance.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leavebalance.handler")
	}
	return &Handler{service: service, logger: l, now: time.Now}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
	}
	if httpErr.Status >= http.StatusInternalServerError {
		h.logger.Error("leave balance request failed", append(fields, zap.Error(err))...)
	} else {
		h.logger.Warn("leave balance request failed", append(fields, zap.String("message", httpErr.Message))...)
	}
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// yearParam reads ?year=, defaulting to the current year.
func (h *Handler) yearParam(c *gin.Context) (int, error) {
	raw := c.Query("year")
	if raw == "" {
		return h.now().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, leavebalanceerrors.ErrInvalidYear
	}
	return year, nil
}

func (h *Handler) Me(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	year, err := h.yearParam(c)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp, err := h.service.GetBalances(c.Request.Context(), caller, caller.EmployeeID.String(), year)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetForEmployee(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	year, err := h.yearParam(c)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp, err := h.service.GetBalances(c.Request.Context(), caller, c.Param("employee_id"), year)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) List(c *gin.Context) {
	caller := middleware.CallerFromContext(c)

	params := ListParams{
		LeaveType:  c.Query("leave_type"),
		Pagination: query.ParsePagination(c),
		Sort:       query.ParseSort(c, DefaultSortField),
	}
	if raw := c.Query("employee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeServiceError(c, leavebalanceerrors.ErrInvalidEmployeeID)
			return
		}
		params.EmployeeID = &id
	}
	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			h.writeServiceError(c, leavebalanceerrors.ErrInvalidYear)
			return
		}
		params.Year = year
	}

	result, err := h.service.List(c.Request.Context(), caller, params)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	meta := response.NewPaginationMeta(result.Total, result.Page, result.PageSize)
	response.Success(c, http.StatusOK, result.Rows, &meta)
}

func (h *Handler) Provision(c *gin.Context) {
	caller := middleware.CallerFromContext(c)

	var req ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.Provision(c.Request.Context(), caller, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Reconcile(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	year, err := h.yearParam(c)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp, err := h.service.Reconcile(c.Request.Context(), caller, c.Param("employee_id"), year)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

// ProvisionYear provisions default entitlements for every employee for ?year=.
func (h *Handler) ProvisionYear(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	year, err := h.yearParam(c)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp, err := h.service.ProvisionYear(c.Request.Context(), caller, year)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}
