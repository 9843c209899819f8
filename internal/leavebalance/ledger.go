package leavebalance

import (
	"fmt"

	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"

	"github.com/shopspring/decimal"
)

// Operation is a request transition that moves days between tallies.
type Operation string

const (
	OpSubmit  Operation = "submit"
	OpApprove Operation = "approve"
	OpReject  Operation = "reject"
	OpCancel  Operation = "cancel"
)

type Tallies struct {
	Entitled decimal.Decimal
	Used     decimal.Decimal
	Pending  decimal.Decimal
}

// Available may go negative: over-allocation is reported, not blocked.
func (t Tallies) Available() decimal.Decimal {
	return t.Entitled.Sub(t.Used).Sub(t.Pending)
}

// Adjustment describes a floor clamp applied while releasing pending days.
// Shortfall is how many days were missing from pending.
type Adjustment struct {
	Clamped   bool
	Shortfall decimal.Decimal
}

// Apply returns the tallies after op moves days. It never produces a
// negative pending count.
func Apply(t Tallies, op Operation, days decimal.Decimal) (Tallies, Adjustment, error) {
	if !days.IsPositive() {
		return t, Adjustment{}, leavebalanceerrors.ErrInvalidDays
	}

	switch op {
	case OpSubmit:
		t.Pending = t.Pending.Add(days)
		return t, Adjustment{}, nil
	case OpApprove:
		pending, adj := releasePending(t.Pending, days)
		t.Pending = pending
		t.Used = t.Used.Add(days)
		return t, adj, nil
	case OpReject, OpCancel:
		pending, adj := releasePending(t.Pending, days)
		t.Pending = pending
		return t, adj, nil
	default:
		return t, Adjustment{}, fmt.Errorf("unknown ledger operation %q", op)
	}
}

func releasePending(pending, days decimal.Decimal) (decimal.Decimal, Adjustment) {
	next := pending.Sub(days)
	if next.IsNegative() {
		return decimal.Zero, Adjustment{Clamped: true, Shortfall: next.Neg()}
	}
	return next, Adjustment{}
}
