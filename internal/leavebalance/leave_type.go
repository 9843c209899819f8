package leavebalance

import "strings"

type LeaveType string

const (
	LeaveTypeVacation    LeaveType = "vacation"
	LeaveTypeSick        LeaveType = "sick"
	LeaveTypePersonal    LeaveType = "personal"
	LeaveTypeBereavement LeaveType = "bereavement"
	LeaveTypeJuryDuty    LeaveType = "jury_duty"
	LeaveTypeOther       LeaveType = "other"
)

// LeaveTypes lists every accepted leave type in display order.
var LeaveTypes = []LeaveType{
	LeaveTypeVacation,
	LeaveTypeSick,
	LeaveTypePersonal,
	LeaveTypeBereavement,
	LeaveTypeJuryDuty,
	LeaveTypeOther,
}

func ParseLeaveType(v string) (LeaveType, bool) {
	t := LeaveType(strings.ToLower(strings.TrimSpace(v)))
	return t, t.Valid()
}

func (t LeaveType) Valid() bool {
	for _, lt := range LeaveTypes {
		if t == lt {
			return true
		}
	}
	return false
}

func (t LeaveType) String() string {
	return string(t)
}
