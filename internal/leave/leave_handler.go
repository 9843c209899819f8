package leave

import (
	"net/http"

	leaveerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leave/errors"
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
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("leave.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.handler")
	}
	return &Handler{service: service, logger: l}
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
		h.logger.Error("leave request failed", append(fields, zap.Error(err))...)
	} else {
		h.logger.Warn("leave request failed", append(fields, zap.String("message", httpErr.Message))...)
	}
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) Create(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	h.logger.Debug("http create leave",
		zap.String("company_id", caller.CompanyID.String()),
		zap.String("employee_id", caller.EmployeeID.String()),
	)

	var req SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.Submit(c.Request.Context(), caller, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) List(c *gin.Context) {
	caller := middleware.CallerFromContext(c)

	params := ListParams{
		LeaveType:  c.Query("leave_type"),
		Status:     c.Query("status"),
		From:       c.Query("from"),
		To:         c.Query("to"),
		Pagination: query.ParsePagination(c),
		Sort:       query.ParseSort(c, DefaultSortField),
	}
	if raw := c.Query("employee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeServiceError(c, leaveerrors.ErrInvalidEmployeeID)
			return
		}
		params.EmployeeID = &id
	}

	result, err := h.service.List(c.Request.Context(), caller, params)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	meta := response.NewPaginationMeta(result.Total, result.Page, result.PageSize)
	response.Success(c, http.StatusOK, result.Rows, &meta)
}

func (h *Handler) GetByID(c *gin.Context) {
	caller := middleware.CallerFromContext(c)

	resp, err := h.service.GetByID(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Approve(c *gin.Context) {
	h.review(c, DecisionApprove)
}

func (h *Handler) Reject(c *gin.Context) {
	h.review(c, DecisionReject)
}

func (h *Handler) review(c *gin.Context, decision Decision) {
	caller := middleware.CallerFromContext(c)

	var req ReviewLeaveRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.Review(c.Request.Context(), caller, c.Param("id"), decision, req.Comment)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Cancel(c *gin.Context) {
	caller := middleware.CallerFromContext(c)

	var req CancelLeaveRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), caller, c.Param("id"), req.Comment)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

// bindOptionalJSON binds the body when one was sent. Review and cancel
// accept an empty body.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dst)
}
