package leave

import (
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LeaveRequest struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey"`
	CompanyID     uuid.UUID              `gorm:"type:uuid;not null;index:idx_leave_requests_company_status;uniqueIndex:uq_leave_request_number,priority:1"`
	EmployeeID    uuid.UUID              `gorm:"type:uuid;not null;index:idx_leave_requests_employee_dates"`
	RequestNumber string                 `gorm:"type:varchar(20);not null;uniqueIndex:uq_leave_request_number,priority:2"`
	LeaveType     leavebalance.LeaveType `gorm:"type:varchar(20);not null"`
	StartDate     time.Time              `gorm:"type:date;not null;index:idx_leave_requests_employee_dates"`
	EndDate       time.Time              `gorm:"type:date;not null;index:idx_leave_requests_employee_dates"`
	TotalDays     decimal.Decimal        `gorm:"type:numeric(5,1);not null"`
	HalfDay       bool                   `gorm:"not null;default:false"`
	Reason        string                 `gorm:"type:text"`

	Status        Status     `gorm:"type:varchar(20);not null;default:'pending';index:idx_leave_requests_company_status"`
	ReviewedBy    *uuid.UUID `gorm:"type:uuid"`
	ReviewedAt    *time.Time
	ReviewComment *string    `gorm:"type:text"`
	CancelledBy   *uuid.UUID `gorm:"type:uuid"`
	CancelledAt   *time.Time

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}

// Year is the ledger year the request is booked against.
func (l LeaveRequest) Year() int {
	return l.StartDate.Year()
}

func (l LeaveRequest) BalanceKey() leavebalance.Key {
	return leavebalance.Key{
		CompanyID:  l.CompanyID,
		EmployeeID: l.EmployeeID,
		LeaveType:  l.LeaveType,
		Year:       l.Year(),
	}
}
