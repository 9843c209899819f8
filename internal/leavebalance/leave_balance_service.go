package leavebalance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/contextutil"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/query"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	BalanceKeyPrefix       = "leave_balances:"
	DefaultBalanceCacheTTL = 10 * time.Minute

	minYear = 2000
	maxYear = 2100
)

func GetBalanceKey(companyID, employeeID string, year int) string {
	return fmt.Sprintf("%s%s:%s:%d", BalanceKeyPrefix, companyID, employeeID, year)
}

// GetBalanceGenerationKey holds a counter bumped on every invalidation of the
// matching balance key. A cache fill only lands if the counter is unchanged.
func GetBalanceGenerationKey(companyID, employeeID string, year int) string {
	return GetBalanceKey(companyID, employeeID, year) + ":gen"
}

// fillBalanceCache writes ARGV[2] to KEYS[1] only while KEYS[2] still holds
// the generation read before the rows were loaded.
var fillBalanceCache = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type Settings struct {
	CacheTTL            time.Duration
	DefaultEntitlements map[LeaveType]decimal.Decimal
}

// ParseDefaults validates configured default entitlements keyed by leave type name.
func ParseDefaults(raw map[string]decimal.Decimal) (map[LeaveType]decimal.Decimal, error) {
	out := make(map[LeaveType]decimal.Decimal, len(raw))
	for name, days := range raw {
		lt, ok := ParseLeaveType(name)
		if !ok {
			return nil, fmt.Errorf("default entitlement: unknown leave type %q", name)
		}
		if !validEntitlement(days) {
			return nil, fmt.Errorf("default entitlement: invalid days %s for %s", days, name)
		}
		out[lt] = days
	}
	return out, nil
}

type Service interface {
	GetBalances(ctx context.Context, caller rbac.Caller, employeeID string, year int) ([]BalanceResponse, error)
	List(ctx context.Context, caller rbac.Caller, params ListParams) (ListResult, error)
	Provision(ctx context.Context, caller rbac.Caller, req ProvisionRequest) (BalanceResponse, error)
	Reconcile(ctx context.Context, caller rbac.Caller, employeeID string, year int) (ReconcileResponse, error)
	ProvisionDefaults(ctx context.Context, companyID, employeeID string, year int) (int, error)
	ProvisionYear(ctx context.Context, caller rbac.Caller, year int) (ProvisionYearResponse, error)
	Invalidate(ctx context.Context, companyID, employeeID string, year int)
}

type service struct {
	db       *sql.DB
	repo     Repository
	rdb      *redis.Client
	sf       *singleflight.Group
	settings Settings
	logger   *zap.Logger
}

func NewService(db *sql.DB, repo Repository, rdb *redis.Client, settings Settings, logger ...*zap.Logger) Service {
	l := zap.L().Named("leavebalance.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leavebalance.service")
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = DefaultBalanceCacheTTL
	}
	return &service{
		db:       db,
		repo:     repo,
		rdb:      rdb,
		sf:       &singleflight.Group{},
		settings: settings,
		logger:   l,
	}
}

func (s *service) GetBalances(ctx context.Context, caller rbac.Caller, employeeID string, year int) ([]BalanceResponse, error) {
	if err := rbac.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	empID, err := uuid.Parse(employeeID)
	if err != nil {
		return nil, leavebalanceerrors.ErrInvalidEmployeeID
	}
	if err := rbac.RequireOwnerOrPrivileged(caller, empID); err != nil {
		return nil, err
	}
	if !validYear(year) {
		return nil, leavebalanceerrors.ErrInvalidYear
	}

	companyID := caller.CompanyID.String()
	cacheKey := GetBalanceKey(companyID, employeeID, year)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var resp []BalanceResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return resp, nil
			}
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		gen := s.generation(ctx, companyID, employeeID, year)

		balances, err := s.repo.ListByEmployeeYear(ctx, companyID, employeeID, year)
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		if len(balances) == 0 && empID != caller.EmployeeID {
			exists, err := s.repo.EmployeeExists(ctx, companyID, employeeID)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, leavebalanceerrors.ErrEmployeeNotFound
			}
		}

		resp := mapToListResponse(balances)
		s.fillCache(ctx, companyID, employeeID, year, gen, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]BalanceResponse), nil
}

func (s *service) List(ctx context.Context, caller rbac.Caller, params ListParams) (ListResult, error) {
	if err := rbac.RequireAuthenticated(caller); err != nil {
		return ListResult{}, err
	}
	if params.LeaveType != "" {
		lt, ok := ParseLeaveType(params.LeaveType)
		if !ok {
			return ListResult{}, leavebalanceerrors.ErrInvalidLeaveType
		}
		params.LeaveType = lt.String()
	}
	if params.Year != 0 && !validYear(params.Year) {
		return ListResult{}, leavebalanceerrors.ErrInvalidYear
	}

	params.EmployeeID = rbac.ScopeEmployee(caller, params.EmployeeID)
	params.Pagination = query.NewPagination(params.Pagination.Page, params.Pagination.PageSize)
	params.Sort = query.NewSort(params.Sort.Field, params.Sort.Order, DefaultSortField)

	rows, total, err := s.repo.List(ctx, caller.CompanyID.String(), params)
	if err != nil {
		s.logger.Debug("list leave balances failed", zap.Error(err))
		return ListResult{}, mapRepositoryError(err)
	}

	return ListResult{
		Rows:       rows,
		Total:      total,
		Page:       params.Pagination.Page,
		PageSize:   params.Pagination.PageSize,
		TotalPages: params.Pagination.TotalPages(total),
	}, nil
}

func (s *service) Provision(ctx context.Context, caller rbac.Caller, req ProvisionRequest) (BalanceResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	if err := rbac.RequireAdmin(caller); err != nil {
		return BalanceResponse{}, err
	}
	empID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		return BalanceResponse{}, leavebalanceerrors.ErrInvalidEmployeeID
	}
	lt, ok := ParseLeaveType(req.LeaveType)
	if !ok {
		return BalanceResponse{}, leavebalanceerrors.ErrInvalidLeaveType
	}
	if !validYear(req.Year) {
		return BalanceResponse{}, leavebalanceerrors.ErrInvalidYear
	}
	if !validEntitlement(req.EntitledDays) {
		return BalanceResponse{}, leavebalanceerrors.ErrInvalidEntitlement
	}

	companyID := caller.CompanyID.String()
	key := Key{CompanyID: caller.CompanyID, EmployeeID: empID, LeaveType: lt, Year: req.Year}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("provision balance begin tx failed", zap.Error(err))
		return BalanceResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	exists, err := qtx.EmployeeExists(ctx, companyID, req.EmployeeID)
	if err != nil {
		return BalanceResponse{}, err
	}
	if !exists {
		return BalanceResponse{}, leavebalanceerrors.ErrEmployeeNotFound
	}

	if err := qtx.UpsertEntitlement(ctx, NewBalance(key, req.EntitledDays)); err != nil {
		logger.Error("provision balance upsert failed", zap.Error(err))
		return BalanceResponse{}, mapRepositoryError(err)
	}
	b, err := qtx.FindByKey(ctx, key)
	if err != nil {
		return BalanceResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("provision balance commit failed", zap.Error(err))
		return BalanceResponse{}, err
	}

	s.Invalidate(ctx, companyID, req.EmployeeID, req.Year)
	logger.Info("provision balance success",
		zap.String("employee_id", req.EmployeeID),
		zap.String("leave_type", lt.String()),
		zap.Int("year", req.Year),
		zap.String("entitled_days", req.EntitledDays.String()),
		zap.String("actor_id", caller.EmployeeID.String()),
	)
	return mapToResponse(*b), nil
}

// Reconcile recomputes used and pending days for one employee and year
// from the request table and rewrites every row that drifted.
func (s *service) Reconcile(ctx context.Context, caller rbac.Caller, employeeID string, year int) (ReconcileResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	if err := rbac.RequireAdmin(caller); err != nil {
		return ReconcileResponse{}, err
	}
	empID, err := uuid.Parse(employeeID)
	if err != nil {
		return ReconcileResponse{}, leavebalanceerrors.ErrInvalidEmployeeID
	}
	if !validYear(year) {
		return ReconcileResponse{}, leavebalanceerrors.ErrInvalidYear
	}
	companyID := caller.CompanyID.String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("reconcile begin tx failed", zap.Error(err))
		return ReconcileResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	exists, err := qtx.EmployeeExists(ctx, companyID, employeeID)
	if err != nil {
		return ReconcileResponse{}, err
	}
	if !exists {
		return ReconcileResponse{}, leavebalanceerrors.ErrEmployeeNotFound
	}

	rows, err := qtx.FindAllForUpdate(ctx, companyID, employeeID, year)
	if err != nil {
		return ReconcileResponse{}, mapRepositoryError(err)
	}
	totals, err := qtx.SumRequestDays(ctx, companyID, employeeID, year)
	if err != nil {
		return ReconcileResponse{}, err
	}

	expected := make(map[LeaveType]Tallies)
	for _, t := range totals {
		lt := LeaveType(t.LeaveType)
		cur := expected[lt]
		switch t.Status {
		case "pending":
			cur.Pending = cur.Pending.Add(t.Days)
		case "approved":
			cur.Used = cur.Used.Add(t.Days)
		}
		expected[lt] = cur
	}

	byType := make(map[LeaveType]*LeaveBalance, len(rows))
	for i := range rows {
		byType[rows[i].LeaveType] = &rows[i]
	}

	for lt := range expected {
		if _, ok := byType[lt]; ok {
			continue
		}
		key := Key{CompanyID: caller.CompanyID, EmployeeID: empID, LeaveType: lt, Year: year}
		if _, err := qtx.EnsureExists(ctx, NewBalance(key, decimal.Zero)); err != nil {
			return ReconcileResponse{}, mapRepositoryError(err)
		}
		b, err := qtx.FindForUpdate(ctx, key)
		if err != nil {
			return ReconcileResponse{}, mapRepositoryError(err)
		}
		logger.Warn("reconcile created missing balance row",
			zap.String("employee_id", employeeID),
			zap.String("leave_type", lt.String()),
			zap.Int("year", year),
		)
		byType[lt] = b
	}

	resp := ReconcileResponse{EmployeeID: employeeID, Year: year, Lines: []ReconcileLine{}}
	for _, lt := range LeaveTypes {
		b, ok := byType[lt]
		if !ok {
			continue
		}
		want := expected[lt]
		line := ReconcileLine{
			LeaveType:       lt.String(),
			PreviousUsed:    b.UsedDays,
			PreviousPending: b.PendingDays,
			UsedDays:        want.Used,
			PendingDays:     want.Pending,
			Drifted:         !b.UsedDays.Equal(want.Used) || !b.PendingDays.Equal(want.Pending),
		}
		if line.Drifted {
			logger.Warn("reconcile balance drift",
				zap.String("balance_id", b.ID.String()),
				zap.String("leave_type", lt.String()),
				zap.String("used_before", b.UsedDays.String()),
				zap.String("used_after", want.Used.String()),
				zap.String("pending_before", b.PendingDays.String()),
				zap.String("pending_after", want.Pending.String()),
			)
			b.UsedDays = want.Used
			b.PendingDays = want.Pending
			if err := qtx.Save(ctx, b); err != nil {
				return ReconcileResponse{}, mapRepositoryError(err)
			}
		}
		resp.Lines = append(resp.Lines, line)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("reconcile commit failed", zap.Error(err))
		return ReconcileResponse{}, err
	}

	s.Invalidate(ctx, companyID, employeeID, year)
	logger.Info("reconcile success",
		zap.String("employee_id", employeeID),
		zap.Int("year", year),
		zap.String("actor_id", caller.EmployeeID.String()),
	)
	return resp, nil
}

// ProvisionDefaults creates the configured default entitlement rows that
// are still missing. Existing rows are never modified.
func (s *service) ProvisionDefaults(ctx context.Context, companyID, employeeID string, year int) (int, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	if len(s.settings.DefaultEntitlements) == 0 {
		return 0, nil
	}
	cid, err := uuid.Parse(companyID)
	if err != nil {
		return 0, apperror.WithCause(apperror.InvalidField("company_id"), err)
	}
	empID, err := uuid.Parse(employeeID)
	if err != nil {
		return 0, leavebalanceerrors.ErrInvalidEmployeeID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	created := 0
	for _, lt := range LeaveTypes {
		days, ok := s.settings.DefaultEntitlements[lt]
		if !ok {
			continue
		}
		key := Key{CompanyID: cid, EmployeeID: empID, LeaveType: lt, Year: year}
		inserted, err := qtx.EnsureExists(ctx, NewBalance(key, days))
		if err != nil {
			logger.Error("provision defaults insert failed", zap.String("leave_type", lt.String()), zap.Error(err))
			return 0, mapRepositoryError(err)
		}
		if inserted {
			created++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.Invalidate(ctx, companyID, employeeID, year)
	logger.Info("provision defaults success",
		zap.String("company_id", companyID),
		zap.String("employee_id", employeeID),
		zap.Int("year", year),
		zap.Int("created", created),
	)
	return created, nil
}

// ProvisionYear runs ProvisionDefaults for every employee of the caller's
// company. Each employee commits on its own, so a rerun after a failure
// picks up where the last one stopped.
func (s *service) ProvisionYear(ctx context.Context, caller rbac.Caller, year int) (ProvisionYearResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	if err := rbac.RequireAdmin(caller); err != nil {
		return ProvisionYearResponse{}, err
	}
	if !validYear(year) {
		return ProvisionYearResponse{}, leavebalanceerrors.ErrInvalidYear
	}

	companyID := caller.CompanyID.String()
	ids, err := s.repo.ListEmployeeIDs(ctx, companyID)
	if err != nil {
		logger.Error("provision year list employees failed", zap.Error(err))
		return ProvisionYearResponse{}, err
	}

	resp := ProvisionYearResponse{Year: year, Employees: len(ids)}
	for _, id := range ids {
		created, err := s.ProvisionDefaults(ctx, companyID, id.String(), year)
		if err != nil {
			logger.Error("provision year stopped",
				zap.String("employee_id", id.String()),
				zap.Int("rows_created", resp.RowsCreated),
				zap.Error(err),
			)
			return ProvisionYearResponse{}, err
		}
		resp.RowsCreated += created
	}

	logger.Info("provision year success",
		zap.Int("year", year),
		zap.Int("employees", resp.Employees),
		zap.Int("rows_created", resp.RowsCreated),
		zap.String("actor_id", caller.EmployeeID.String()),
	)
	return resp, nil
}

func (s *service) Invalidate(ctx context.Context, companyID, employeeID string, year int) {
	if s.rdb == nil {
		return
	}
	cacheKey := GetBalanceKey(companyID, employeeID, year)
	if err := s.rdb.Incr(ctx, GetBalanceGenerationKey(companyID, employeeID, year)).Err(); err != nil {
		s.logger.Error("failed to bump leave balance cache generation",
			zap.Error(err),
			zap.String("key", cacheKey),
		)
	}
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Error("failed to invalidate leave balance cache",
			zap.Error(err),
			zap.String("key", cacheKey),
		)
	}
}

// generation returns the current invalidation counter, "0" when unset.
// An unreadable counter yields "" which never matches, so nothing is cached.
func (s *service) generation(ctx context.Context, companyID, employeeID string, year int) string {
	if s.rdb == nil {
		return ""
	}
	gen, err := s.rdb.Get(ctx, GetBalanceGenerationKey(companyID, employeeID, year)).Result()
	if errors.Is(err, redis.Nil) {
		return "0"
	}
	if err != nil {
		s.logger.Warn("read leave balance cache generation failed", zap.Error(err))
		return ""
	}
	return gen
}

// fillCache stores resp unless the balances were invalidated after gen was read.
func (s *service) fillCache(ctx context.Context, companyID, employeeID string, year int, gen string, resp []BalanceResponse) {
	if s.rdb == nil || gen == "" {
		return
	}
	cacheKey := GetBalanceKey(companyID, employeeID, year)
	if current := s.generation(ctx, companyID, employeeID, year); current != gen {
		s.logger.Debug("leave balances invalidated during load, skip cache",
			zap.String("key", cacheKey),
			zap.String("loaded_generation", gen),
			zap.String("current_generation", current),
		)
		return
	}

	jsonData, err := json.Marshal(resp)
	if err != nil {
		return
	}
	genKey := GetBalanceGenerationKey(companyID, employeeID, year)
	err = fillBalanceCache.Run(ctx, s.rdb, []string{cacheKey, genKey}, gen, jsonData, s.settings.CacheTTL.Milliseconds()).Err()
	if err != nil {
		s.logger.Warn("cache leave balances failed", zap.String("key", cacheKey), zap.Error(err))
	}
}

func validYear(year int) bool {
	return year >= minYear && year <= maxYear
}

var two = decimal.NewFromInt(2)

func validEntitlement(days decimal.Decimal) bool {
	return !days.IsNegative() && days.Mul(two).IsInteger()
}

func mapToResponse(b LeaveBalance) BalanceResponse {
	return BalanceResponse{
		ID:            b.ID.String(),
		CompanyID:     b.CompanyID.String(),
		EmployeeID:    b.EmployeeID.String(),
		LeaveType:     b.LeaveType.String(),
		Year:          b.Year,
		EntitledDays:  b.EntitledDays,
		UsedDays:      b.UsedDays,
		PendingDays:   b.PendingDays,
		AvailableDays: b.Tallies().Available(),
		UpdatedAt:     b.UpdatedAt,
	}
}

func mapToListResponse(balances []LeaveBalance) []BalanceResponse {
	resp := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, mapToResponse(b))
	}
	return resp
}
