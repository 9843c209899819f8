package leavebalance

import (
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/query"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProvisionRequest struct {
	EmployeeID   string          `json:"employee_id" binding:"required,uuid"`
	LeaveType    string          `json:"leave_type" binding:"required"`
	Year         int             `json:"year" binding:"required,min=2000,max=2100"`
	EntitledDays decimal.Decimal `json:"entitled_days"`
}

type BalanceResponse struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	EmployeeID    string          `json:"employee_id"`
	LeaveType     string          `json:"leave_type"`
	Year          int             `json:"year"`
	EntitledDays  decimal.Decimal `json:"entitled_days"`
	UsedDays      decimal.Decimal `json:"used_days"`
	PendingDays   decimal.Decimal `json:"pending_days"`
	AvailableDays decimal.Decimal `json:"available_days"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BalanceRow is the list projection: a balance plus the owner's display attributes.
type BalanceRow struct {
	BalanceResponse
	EmployeeName string `json:"employee_name"`
	LegalName    string `json:"legal_name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	OrgUnitCode  string `json:"org_unit_code,omitempty"`
}

type ListParams struct {
	EmployeeID *uuid.UUID
	LeaveType  string
	Year       int
	Pagination query.Pagination
	Sort       query.Sort
}

type ListResult struct {
	Rows       []BalanceRow
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

type ReconcileLine struct {
	LeaveType       string          `json:"leave_type"`
	PreviousUsed    decimal.Decimal `json:"previous_used_days"`
	PreviousPending decimal.Decimal `json:"previous_pending_days"`
	UsedDays        decimal.Decimal `json:"used_days"`
	PendingDays     decimal.Decimal `json:"pending_days"`
	Drifted         bool            `json:"drifted"`
}

type ReconcileResponse struct {
	EmployeeID string          `json:"employee_id"`
	Year       int             `json:"year"`
	Lines      []ReconcileLine `json:"lines"`
}

// ProvisionYearResponse summarizes a company-wide default provisioning run.
type ProvisionYearResponse struct {
	Year        int `json:"year"`
	Employees   int `json:"employees"`
	RowsCreated int `json:"rows_created"`
}

// RequestTotal is the sum of total_days for one (leave type, status) group.
type RequestTotal struct {
	LeaveType string
	Status    string
	Days      decimal.Decimal
}
