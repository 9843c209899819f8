package leave

import (
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/query"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmitLeaveRequest books leave for the caller. EmployeeID may be omitted;
// when present it must be the caller's own id.
type SubmitLeaveRequest struct {
	EmployeeID string `json:"employee_id" binding:"omitempty,uuid"`
	LeaveType  string `json:"leave_type" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
	HalfDay    bool   `json:"half_day"`
	Reason     string `json:"reason" binding:"max=1000"`
}

type ReviewLeaveRequest struct {
	Comment string `json:"comment" binding:"max=1000"`
}

type CancelLeaveRequest struct {
	Comment string `json:"comment" binding:"max=1000"`
}

type LeaveResponse struct {
	ID            string          `json:"id"`
	RequestNumber string          `json:"request_number"`
	CompanyID     string          `json:"company_id"`
	EmployeeID    string          `json:"employee_id"`
	LeaveType     string          `json:"leave_type"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	TotalDays     decimal.Decimal `json:"total_days"`
	HalfDay       bool            `json:"half_day"`
	Reason        string          `json:"reason"`
	Status        string          `json:"status"`
	CreatedBy     string          `json:"created_by"`
	ReviewedBy    *string         `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
	ReviewComment *string         `json:"review_comment,omitempty"`
	CancelledBy   *string         `json:"cancelled_by,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LeaveRow is the list projection of a request joined with its employee.
type LeaveRow struct {
	LeaveResponse
	EmployeeName string `json:"employee_name"`
	LegalName    string `json:"legal_name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	OrgUnitCode  string `json:"org_unit_code,omitempty"`
}

type ListParams struct {
	EmployeeID *uuid.UUID
	LeaveType  string
	Status     string
	From       string
	To         string
	Pagination query.Pagination
	Sort       query.Sort
}

// ListFilter is ListParams after validation.
type ListFilter struct {
	EmployeeID *uuid.UUID
	LeaveType  string
	Status     string
	From       *time.Time
	To         *time.Time
	Pagination query.Pagination
	Sort       query.Sort
}

type ListResult struct {
	Rows       []LeaveRow
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}
