package leavebalance

import (
	"context"
	"database/sql"
	"time"

	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/profile"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/dbtx"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/query"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/tenant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultSortField = "employee_name"

var sortColumns = map[string]string{
	"employee_name": profile.DisplayNameExpr("e"),
	"legal_name":    profile.LegalNameExpr("e"),
	"leave_type":    "b.leave_type",
	"year":          "b.year",
	"entitled_days": "b.entitled_days",
	"used_days":     "b.used_days",
	"pending_days":  "b.pending_days",
	"created_at":    "b.created_at",
	"updated_at":    "b.updated_at",
}

var keyColumns = []clause.Column{
	{Name: "company_id"},
	{Name: "employee_id"},
	{Name: "leave_type"},
	{Name: "year"},
}

type Repository interface {
	WithTx(tx *sql.Tx) Repository
	EnsureExists(ctx context.Context, b *LeaveBalance) (bool, error)
	FindByKey(ctx context.Context, k Key) (*LeaveBalance, error)
	FindForUpdate(ctx context.Context, k Key) (*LeaveBalance, error)
	FindAllForUpdate(ctx context.Context, companyID, employeeID string, year int) ([]LeaveBalance, error)
	Save(ctx context.Context, b *LeaveBalance) error
	UpsertEntitlement(ctx context.Context, b *LeaveBalance) error
	ListByEmployeeYear(ctx context.Context, companyID, employeeID string, year int) ([]LeaveBalance, error)
	List(ctx context.Context, companyID string, params ListParams) ([]BalanceRow, int64, error)
	SumRequestDays(ctx context.Context, companyID, employeeID string, year int) ([]RequestTotal, error)
	EmployeeExists(ctx context.Context, companyID, employeeID string) (bool, error)
	ListEmployeeIDs(ctx context.Context, companyID string) ([]uuid.UUID, error)
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

// EnsureExists inserts b unless a row with the same key already exists.
// It reports whether b was inserted.
func (r *repository) EnsureExists(ctx context.Context, b *LeaveBalance) (bool, error) {
	res := r.conn(ctx).
		Clauses(clause.OnConflict{Columns: keyColumns, DoNothing: true}).
		Create(b)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByKey(ctx context.Context, k Key) (*LeaveBalance, error) {
	var b LeaveBalance
	err := r.conn(ctx).
		Scopes(tenant.Scope(k.CompanyID.String())).
		Where("employee_id = ? AND leave_type = ? AND year = ?", k.EmployeeID, k.LeaveType, k.Year).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) FindForUpdate(ctx context.Context, k Key) (*LeaveBalance, error) {
	var b LeaveBalance
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.Scope(k.CompanyID.String())).
		Where("employee_id = ? AND leave_type = ? AND year = ?", k.EmployeeID, k.LeaveType, k.Year).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) FindAllForUpdate(ctx context.Context, companyID, employeeID string, year int) ([]LeaveBalance, error) {
	var out []LeaveBalance
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ? AND year = ?", employeeID, year).
		Order("leave_type").
		Find(&out).Error
	return out, err
}

// Save writes the tallies if the row still carries b.Version, then bumps it.
func (r *repository) Save(ctx context.Context, b *LeaveBalance) error {
	now := time.Now().UTC()
	res := r.conn(ctx).
		Model(&LeaveBalance{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]interface{}{
			"entitled_days": b.EntitledDays,
			"used_days":     b.UsedDays,
			"pending_days":  b.PendingDays,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return leavebalanceerrors.ErrConcurrentUpdate
	}
	b.Version++
	b.UpdatedAt = now
	return nil
}

// UpsertEntitlement sets entitled_days for b's key, creating the row when
// needed. Used and pending tallies of an existing row are left alone.
func (r *repository) UpsertEntitlement(ctx context.Context, b *LeaveBalance) error {
	return r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns: keyColumns,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"entitled_days": b.EntitledDays,
				"version":       gorm.Expr("leave_balances.version + 1"),
				"updated_at":    time.Now().UTC(),
			}),
		}).
		Create(b).Error
}

func (r *repository) ListByEmployeeYear(ctx context.Context, companyID, employeeID string, year int) ([]LeaveBalance, error) {
	var out []LeaveBalance
	err := r.conn(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ? AND year = ?", employeeID, year).
		Order("leave_type").
		Find(&out).Error
	return out, err
}

type balanceRowRecord struct {
	ID           string
	CompanyID    string
	EmployeeID   string
	LeaveType    string
	Year         int
	EntitledDays decimal.Decimal
	UsedDays     decimal.Decimal
	PendingDays  decimal.Decimal
	UpdatedAt    time.Time
	EmployeeName string
	LegalName    string
	AvatarURL    string
	OrgUnitCode  string
}

func (r *repository) List(ctx context.Context, companyID string, params ListParams) ([]BalanceRow, int64, error) {
	base := func() *gorm.DB {
		db := r.conn(ctx).
			Table("leave_balances AS b").
			Joins("JOIN employees e ON e.id = b.employee_id AND e.company_id = b.company_id").
			Scopes(tenant.TableScope("b", companyID))
		if params.EmployeeID != nil {
			db = db.Where("b.employee_id = ?", *params.EmployeeID)
		}
		if params.LeaveType != "" {
			db = db.Where("b.leave_type = ?", params.LeaveType)
		}
		if params.Year > 0 {
			db = db.Where("b.year = ?", params.Year)
		}
		return db
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db, err := query.ApplySort(base(), params.Sort, sortColumns)
	if err != nil {
		return nil, 0, leavebalanceerrors.ErrInvalidSortField
	}

	var records []balanceRowRecord
	err = query.ApplyPagination(db.Order("b.id"), params.Pagination).
		Select(`b.id, b.company_id, b.employee_id, b.leave_type, b.year,
			b.entitled_days, b.used_days, b.pending_days, b.updated_at,
			` + profile.DisplayNameExpr("e") + ` AS employee_name,
			` + profile.LegalNameExpr("e") + ` AS legal_name,
			COALESCE(e.avatar_url, '') AS avatar_url,
			COALESCE(e.org_unit_code, '') AS org_unit_code`).
		Scan(&records).Error
	if err != nil {
		return nil, 0, err
	}

	rows := make([]BalanceRow, 0, len(records))
	for _, rec := range records {
		t := Tallies{Entitled: rec.EntitledDays, Used: rec.UsedDays, Pending: rec.PendingDays}
		rows = append(rows, BalanceRow{
			BalanceResponse: BalanceResponse{
				ID:            rec.ID,
				CompanyID:     rec.CompanyID,
				EmployeeID:    rec.EmployeeID,
				LeaveType:     rec.LeaveType,
				Year:          rec.Year,
				EntitledDays:  rec.EntitledDays,
				UsedDays:      rec.UsedDays,
				PendingDays:   rec.PendingDays,
				AvailableDays: t.Available(),
				UpdatedAt:     rec.UpdatedAt,
			},
			EmployeeName: rec.EmployeeName,
			LegalName:    rec.LegalName,
			AvatarURL:    rec.AvatarURL,
			OrgUnitCode:  rec.OrgUnitCode,
		})
	}
	return rows, total, nil
}

// SumRequestDays totals pending and approved request days per leave type for
// the requests starting in year.
func (r *repository) SumRequestDays(ctx context.Context, companyID, employeeID string, year int) ([]RequestTotal, error) {
	var out []RequestTotal
	err := r.conn(ctx).
		Table("leave_requests").
		Select("leave_type, status, COALESCE(SUM(total_days), 0) AS days").
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ? AND EXTRACT(YEAR FROM start_date) = ?", employeeID, year).
		Where("status IN ?", []string{"pending", "approved"}).
		Group("leave_type, status").
		Scan(&out).Error
	return out, err
}

func (r *repository) EmployeeExists(ctx context.Context, companyID, employeeID string) (bool, error) {
	var count int64
	err := r.conn(ctx).
		Table("employees").
		Scopes(tenant.Scope(companyID)).
		Where("id = ?", employeeID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListEmployeeIDs(ctx context.Context, companyID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.conn(ctx).
		Model(&profile.Profile{}).
		Scopes(tenant.Scope(companyID)).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
