package leave

import (
	"context"
	"database/sql"
	"time"

	leaveerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leave/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/profile"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/dbtx"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/query"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/tenant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultSortField = "created_at"

var sortColumns = map[string]string{
	"employee_name": profile.DisplayNameExpr("e"),
	"legal_name":    profile.LegalNameExpr("e"),
	"leave_type":    "l.leave_type",
	"start_date":    "l.start_date",
	"end_date":      "l.end_date",
	"total_days":    "l.total_days",
	"status":        "l.status",
	"created_at":    "l.created_at",
}

type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, l *LeaveRequest) error
	FindByIDAndCompany(ctx context.Context, companyID, id string) (*LeaveRequest, error)
	FindForUpdate(ctx context.Context, companyID, id string) (*LeaveRequest, error)
	TransitionStatus(ctx context.Context, l *LeaveRequest, from Status) error
	LockEmployee(ctx context.Context, companyID, employeeID string) error
	HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, startDate, endDate time.Time) (bool, error)
	List(ctx context.Context, companyID string, f ListFilter) ([]LeaveRow, int64, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	return dbtx.Conn(ctx, r.db, r.tx)
}

func (r *repository) Create(ctx context.Context, l *LeaveRequest) error {
	return r.conn(ctx).Create(l).Error
}

func (r *repository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*LeaveRequest, error) {
	var l LeaveRequest
	err := r.conn(ctx).
		Scopes(tenant.Scope(companyID)).
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) FindForUpdate(ctx context.Context, companyID, id string) (*LeaveRequest, error) {
	var l LeaveRequest
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.Scope(companyID)).
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// TransitionStatus writes l's status and review fields only if the stored
// status is still from.
func (r *repository) TransitionStatus(ctx context.Context, l *LeaveRequest, from Status) error {
	res := r.conn(ctx).
		Model(&LeaveRequest{}).
		Scopes(tenant.Scope(l.CompanyID.String())).
		Where("id = ? AND status = ?", l.ID, from).
		Updates(map[string]interface{}{
			"status":         l.Status,
			"reviewed_by":    l.ReviewedBy,
			"reviewed_at":    l.ReviewedAt,
			"review_comment": l.ReviewComment,
			"cancelled_by":   l.CancelledBy,
			"cancelled_at":   l.CancelledAt,
			"updated_at":     l.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return leaveerrors.ErrConcurrentTransition
	}
	return nil
}

// LockEmployee takes a transaction-scoped advisory lock so overlap checks and
// inserts for one employee run one at a time. It only holds inside a tx.
func (r *repository) LockEmployee(ctx context.Context, companyID, employeeID string) error {
	return r.conn(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", employeeLockKey(companyID, employeeID)).
		Error
}

func employeeLockKey(companyID, employeeID string) string {
	return "leave_request:" + companyID + ":" + employeeID
}

// HasOverlappingPeriod reports whether the employee already has a pending or
// approved request touching [startDate, endDate].
func (r *repository) HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, startDate, endDate time.Time) (bool, error) {
	var count int64
	err := r.conn(ctx).
		Model(&LeaveRequest{}).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ?", employeeID).
		Where("status IN ?", []Status{StatusPending, StatusApproved}).
		Where("NOT (end_date < ? OR start_date > ?)", startDate, endDate).
		Count(&count).Error
	return count > 0, err
}

type leaveRowRecord struct {
	ID            uuid.UUID
	RequestNumber string
	CompanyID     uuid.UUID
	EmployeeID    uuid.UUID
	LeaveType     string
	StartDate     time.Time
	EndDate       time.Time
	TotalDays     decimal.Decimal
	HalfDay       bool
	Reason        string
	Status        string
	CreatedBy     uuid.UUID
	ReviewedBy    *uuid.UUID
	ReviewedAt    *time.Time
	ReviewComment *string
	CancelledBy   *uuid.UUID
	CancelledAt   *time.Time
	CreatedAt     time.Time
	EmployeeName  string
	LegalName     string
	AvatarURL     string
	OrgUnitCode   string
}

func (r *repository) List(ctx context.Context, companyID string, f ListFilter) ([]LeaveRow, int64, error) {
	base := func() *gorm.DB {
		db := r.conn(ctx).
			Table("leave_requests AS l").
			Joins("JOIN employees e ON e.id = l.employee_id AND e.company_id = l.company_id").
			Scopes(tenant.TableScope("l", companyID))
		if f.EmployeeID != nil {
			db = db.Where("l.employee_id = ?", *f.EmployeeID)
		}
		if f.LeaveType != "" {
			db = db.Where("l.leave_type = ?", f.LeaveType)
		}
		if f.Status != "" {
			db = db.Where("l.status = ?", f.Status)
		}
		if f.From != nil {
			db = db.Where("l.end_date >= ?", *f.From)
		}
		if f.To != nil {
			db = db.Where("l.start_date <= ?", *f.To)
		}
		return db
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db, err := query.ApplySort(base(), f.Sort, sortColumns)
	if err != nil {
		return nil, 0, leaveerrors.ErrInvalidSortField
	}

	var records []leaveRowRecord
	err = query.ApplyPagination(db.Order("l.id"), f.Pagination).
		Select(`l.id, l.request_number, l.company_id, l.employee_id, l.leave_type,
			l.start_date, l.end_date, l.total_days, l.half_day, l.reason, l.status,
			l.created_by, l.reviewed_by, l.reviewed_at, l.review_comment,
			l.cancelled_by, l.cancelled_at, l.created_at,
			` + profile.DisplayNameExpr("e") + ` AS employee_name,
			` + profile.LegalNameExpr("e") + ` AS legal_name,
			COALESCE(e.avatar_url, '') AS avatar_url,
			COALESCE(e.org_unit_code, '') AS org_unit_code`).
		Scan(&records).Error
	if err != nil {
		return nil, 0, err
	}

	rows := make([]LeaveRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, LeaveRow{
			LeaveResponse: mapToResponse(LeaveRequest{
				ID:            rec.ID,
				RequestNumber: rec.RequestNumber,
				CompanyID:     rec.CompanyID,
				EmployeeID:    rec.EmployeeID,
				LeaveType:     leavebalance.LeaveType(rec.LeaveType),
				StartDate:     rec.StartDate,
				EndDate:       rec.EndDate,
				TotalDays:     rec.TotalDays,
				HalfDay:       rec.HalfDay,
				Reason:        rec.Reason,
				Status:        Status(rec.Status),
				CreatedBy:     rec.CreatedBy,
				ReviewedBy:    rec.ReviewedBy,
				ReviewedAt:    rec.ReviewedAt,
				ReviewComment: rec.ReviewComment,
				CancelledBy:   rec.CancelledBy,
				CancelledAt:   rec.CancelledAt,
				CreatedAt:     rec.CreatedAt,
			}),
			EmployeeName: rec.EmployeeName,
			LegalName:    rec.LegalName,
			AvatarURL:    rec.AvatarURL,
			OrgUnitCode:  rec.OrgUnitCode,
		})
	}
	return rows, total, nil
}
