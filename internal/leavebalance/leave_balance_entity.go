package leavebalance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeaveBalance holds the running tallies for one (company, employee, type, year).
type LeaveBalance struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CompanyID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_leave_balance_key,priority:1"`
	EmployeeID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_leave_balance_key,priority:2"`
	LeaveType    LeaveType       `gorm:"type:varchar(20);not null;uniqueIndex:uq_leave_balance_key,priority:3"`
	Year         int             `gorm:"not null;uniqueIndex:uq_leave_balance_key,priority:4"`
	EntitledDays decimal.Decimal `gorm:"type:numeric(6,1);not null;default:0"`
	UsedDays     decimal.Decimal `gorm:"type:numeric(6,1);not null;default:0"`
	PendingDays  decimal.Decimal `gorm:"type:numeric(6,1);not null;default:0"`
	Version      int64           `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (LeaveBalance) TableName() string {
	return "leave_balances"
}

func (b LeaveBalance) Key() Key {
	return Key{
		CompanyID:  b.CompanyID,
		EmployeeID: b.EmployeeID,
		LeaveType:  b.LeaveType,
		Year:       b.Year,
	}
}

func (b LeaveBalance) Tallies() Tallies {
	return Tallies{Entitled: b.EntitledDays, Used: b.UsedDays, Pending: b.PendingDays}
}

func (b *LeaveBalance) SetTallies(t Tallies) {
	b.EntitledDays = t.Entitled
	b.UsedDays = t.Used
	b.PendingDays = t.Pending
}

// Key identifies one balance row.
type Key struct {
	CompanyID  uuid.UUID
	EmployeeID uuid.UUID
	LeaveType  LeaveType
	Year       int
}

// NewBalance returns an unsaved zero row for k.
func NewBalance(k Key, entitled decimal.Decimal) *LeaveBalance {
	return &LeaveBalance{
		ID:           uuid.New(),
		CompanyID:    k.CompanyID,
		EmployeeID:   k.EmployeeID,
		LeaveType:    k.LeaveType,
		Year:         k.Year,
		EntitledDays: entitled,
		UsedDays:     decimal.Zero,
		PendingDays:  decimal.Zero,
	}
}
