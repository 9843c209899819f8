package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const LeaveRequestTopic = "hr.leave.request.v1"

const (
	LeaveRequestSubmitted = "leave_request_submitted"
	LeaveRequestApproved  = "leave_request_approved"
	LeaveRequestRejected  = "leave_request_rejected"
	LeaveRequestCancelled = "leave_request_cancelled"
)

// LeaveRequestEvent is published for every leave request status change.
type LeaveRequestEvent struct {
	EventType      string          `json:"event_type"`
	RequestID      string          `json:"request_id,omitempty"`
	LeaveRequestID string          `json:"leave_request_id"`
	RequestNumber  string          `json:"request_number"`
	CompanyID      string          `json:"company_id"`
	EmployeeID     string          `json:"employee_id"`
	LeaveType      string          `json:"leave_type"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	TotalDays      decimal.Decimal `json:"total_days"`
	Status         string          `json:"status"`
	ActorID        string          `json:"actor_id"`
	Comment        string          `json:"comment,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
