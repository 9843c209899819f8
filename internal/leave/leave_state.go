package leave

import (
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/events"
	leaveerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leave/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(v string) (Status, bool) {
	s := Status(v)
	return s, s.Valid()
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether a request in from may move to to.
// Only pending requests move, and only into a terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// Decision is a reviewer's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

func (d Decision) TargetStatus() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

func (d Decision) LedgerOperation() leavebalance.Operation {
	if d == DecisionApprove {
		return leavebalance.OpApprove
	}
	return leavebalance.OpReject
}

func eventTypeFor(s Status) string {
	switch s {
	case StatusApproved:
		return events.LeaveRequestApproved
	case StatusRejected:
		return events.LeaveRequestRejected
	case StatusCancelled:
		return events.LeaveRequestCancelled
	default:
		return events.LeaveRequestSubmitted
	}
}

var half = decimal.NewFromFloat(0.5)

// CountDays returns the inclusive calendar day count of [start, end], or 0.5
// for a half day. Both dates must be in the same year.
func CountDays(start, end time.Time, halfDay bool) (decimal.Decimal, error) {
	if start.After(end) {
		return decimal.Zero, leaveerrors.ErrInvalidDateRange
	}
	if start.Year() != end.Year() {
		return decimal.Zero, leaveerrors.ErrCrossYear
	}
	if halfDay {
		if !start.Equal(end) {
			return decimal.Zero, leaveerrors.ErrHalfDayRange
		}
		return half, nil
	}
	days := int64(end.Sub(start).Hours()/24) + 1
	return decimal.NewFromInt(days), nil
}

const dateLayout = "2006-01-02"

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return t, nil
}
