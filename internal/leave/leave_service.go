package leave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/bootstrap"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/events"
	leaveerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leave/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/contextutil"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/counter"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/query"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const requestNumberCounter = "leave_request_number"

// BalanceCache drops cached balances after a committed ledger change.
type BalanceCache interface {
	Invalidate(ctx context.Context, companyID, employeeID string, year int)
}

type Service interface {
	Submit(ctx context.Context, caller rbac.Caller, req SubmitLeaveRequest) (LeaveResponse, error)
	Review(ctx context.Context, caller rbac.Caller, id string, decision Decision, comment string) (LeaveResponse, error)
	Cancel(ctx context.Context, caller rbac.Caller, id, comment string) (LeaveResponse, error)
	GetByID(ctx context.Context, caller rbac.Caller, id string) (LeaveResponse, error)
	List(ctx context.Context, caller rbac.Caller, params ListParams) (ListResult, error)
}

type service struct {
	db       *sql.DB
	repo     Repository
	ledger   leavebalance.Ledger
	counter  counter.Repository
	outbox   kafka.OutboxRepository
	balances BalanceCache
	audit    bootstrap.AuditLogger
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	ledger leavebalance.Ledger,
	counter counter.Repository,
	logger ...*zap.Logger,
) Service {
	return NewServiceWithOutbox(db, repo, ledger, counter, nil, nil, nil, logger...)
}

func NewServiceWithOutbox(
	db *sql.DB,
	repo Repository,
	ledger leavebalance.Ledger,
	counter counter.Repository,
	outboxRepo kafka.OutboxRepository,
	balances BalanceCache,
	audit bootstrap.AuditLogger,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	return &service{
		db:       db,
		repo:     repo,
		ledger:   ledger,
		counter:  counter,
		outbox:   outboxRepo,
		balances: balances,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   l,
	}
}

func (s *service) Submit(ctx context.Context, caller rbac.Caller, req SubmitLeaveRequest) (LeaveResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	if err := rbac.RequireAuthenticated(caller); err != nil {
		return LeaveResponse{}, err
	}
	logger.Debug("submit leave requested",
		zap.String("company_id", caller.CompanyID.String()),
		zap.String("employee_id", caller.EmployeeID.String()),
		zap.String("leave_type", req.LeaveType),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	if req.EmployeeID != "" {
		target, err := uuid.Parse(req.EmployeeID)
		if err != nil {
			return LeaveResponse{}, leaveerrors.ErrInvalidEmployeeID
		}
		if target != caller.EmployeeID {
			logger.Warn("submit leave for another employee rejected",
				zap.String("caller_id", caller.EmployeeID.String()),
				zap.String("target_id", req.EmployeeID),
			)
			return LeaveResponse{}, leaveerrors.ErrSubmitForOther
		}
	}

	leaveType, ok := leavebalance.ParseLeaveType(req.LeaveType)
	if !ok {
		return LeaveResponse{}, leaveerrors.ErrInvalidLeaveType
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return LeaveResponse{}, err
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return LeaveResponse{}, err
	}
	totalDays, err := CountDays(startDate, endDate, req.HalfDay)
	if err != nil {
		return LeaveResponse{}, err
	}

	companyID := caller.CompanyID.String()
	employeeID := caller.EmployeeID.String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("submit leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	if err := qtx.LockEmployee(ctx, companyID, employeeID); err != nil {
		logger.Error("submit leave lock employee failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	overlap, err := qtx.HasOverlappingPeriod(ctx, companyID, employeeID, startDate, endDate)
	if err != nil {
		logger.Error("submit leave overlap check failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if overlap {
		logger.Warn("submit leave overlap detected",
			zap.String("employee_id", employeeID),
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
		)
		return LeaveResponse{}, leaveerrors.ErrLeaveOverlap
	}

	seq, err := s.counter.WithTx(tx).GetNextValue(ctx, companyID, requestNumberCounter)
	if err != nil {
		logger.Error("submit leave generate number failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	now := s.now()
	l := &LeaveRequest{
		ID:            uuid.New(),
		CompanyID:     caller.CompanyID,
		EmployeeID:    caller.EmployeeID,
		RequestNumber: fmt.Sprintf("LV-%06d", seq),
		LeaveType:     leaveType,
		StartDate:     startDate,
		EndDate:       endDate,
		TotalDays:     totalDays,
		HalfDay:       req.HalfDay,
		Reason:        req.Reason,
		Status:        StatusPending,
		CreatedBy:     caller.EmployeeID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := s.ledger.Apply(ctx, tx, l.BalanceKey(), leavebalance.OpSubmit, l.TotalDays); err != nil {
		return LeaveResponse{}, err
	}

	if err := qtx.Create(ctx, l); err != nil {
		logger.Error("submit leave persist failed", zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if err := s.enqueue(ctx, tx, l, caller.EmployeeID, ""); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("submit leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.invalidate(ctx, l)
	logger.Info("submit leave success",
		zap.String("leave_id", l.ID.String()),
		zap.String("request_number", l.RequestNumber),
		zap.String("employee_id", employeeID),
		zap.String("total_days", l.TotalDays.String()),
	)

	return mapToResponse(*l), nil
}

func (s *service) Review(ctx context.Context, caller rbac.Caller, id string, decision Decision, comment string) (LeaveResponse, error) {
	if err := rbac.RequirePrivileged(caller); err != nil {
		return LeaveResponse{}, err
	}
	if !decision.Valid() {
		return LeaveResponse{}, leaveerrors.ErrInvalidDecision
	}

	resp, err := s.transition(ctx, caller, id, decision.TargetStatus(), decision.LedgerOperation(), comment, nil)
	if err != nil {
		return LeaveResponse{}, err
	}

	if s.audit != nil {
		s.audit.Log(ctx, bootstrap.AuditLog{
			Action:  "LEAVE_" + strings.ToUpper(string(decision)),
			ActorID: caller.EmployeeID.String(),
			Message: "leave request reviewed",
			Meta: map[string]any{
				"leave_id":       resp.ID,
				"request_number": resp.RequestNumber,
				"employee_id":    resp.EmployeeID,
				"total_days":     resp.TotalDays.String(),
				"request_id":     contextutil.GetRequestID(ctx),
			},
		})
	}
	return resp, nil
}

func (s *service) Cancel(ctx context.Context, caller rbac.Caller, id, comment string) (LeaveResponse, error) {
	if err := rbac.RequireAuthenticated(caller); err != nil {
		return LeaveResponse{}, err
	}
	return s.transition(ctx, caller, id, StatusCancelled, leavebalance.OpCancel, comment, func(l *LeaveRequest) error {
		return rbac.RequireOwnerOrPrivileged(caller, l.EmployeeID)
	})
}

// transition moves a pending request to target under a row lock and applies
// the matching ledger delta in the same transaction.
func (s *service) transition(
	ctx context.Context,
	caller rbac.Caller,
	id string,
	target Status,
	op leavebalance.Operation,
	comment string,
	authorize func(l *LeaveRequest) error,
) (LeaveResponse, error) {
	logger := contextutil.GetLogger(ctx, s.logger)
	logger.Debug("leave transition requested",
		zap.String("leave_id", id),
		zap.String("actor_id", caller.EmployeeID.String()),
		zap.String("target_status", target.String()),
	)

	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("leave transition begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindForUpdate(ctx, caller.CompanyID.String(), id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if authorize != nil {
		if err := authorize(l); err != nil {
			return LeaveResponse{}, err
		}
	}

	if !CanTransition(l.Status, target) {
		logger.Warn("leave transition rejected",
			zap.String("leave_id", id),
			zap.String("current_status", l.Status.String()),
			zap.String("target_status", target.String()),
		)
		return LeaveResponse{}, leaveerrors.ErrInvalidTransition
	}

	now := s.now()
	from := l.Status
	l.Status = target
	l.UpdatedAt = now
	actor := caller.EmployeeID
	switch target {
	case StatusApproved, StatusRejected:
		l.ReviewedBy = &actor
		l.ReviewedAt = &now
		if comment != "" {
			l.ReviewComment = &comment
		}
	case StatusCancelled:
		l.CancelledBy = &actor
		l.CancelledAt = &now
	}

	if err := qtx.TransitionStatus(ctx, l, from); err != nil {
		logger.Warn("leave transition status write failed",
			zap.String("leave_id", id),
			zap.Error(err),
		)
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if _, err := s.ledger.Apply(ctx, tx, l.BalanceKey(), op, l.TotalDays); err != nil {
		return LeaveResponse{}, err
	}

	if err := s.enqueue(ctx, tx, l, actor, comment); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("leave transition commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.invalidate(ctx, l)
	logger.Info("leave transition success",
		zap.String("leave_id", id),
		zap.String("status", l.Status.String()),
		zap.String("actor_id", actor.String()),
	)

	return mapToResponse(*l), nil
}

func (s *service) GetByID(ctx context.Context, caller rbac.Caller, id string) (LeaveResponse, error) {
	if err := rbac.RequireAuthenticated(caller); err != nil {
		return LeaveResponse{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	l, err := s.repo.FindByIDAndCompany(ctx, caller.CompanyID.String(), id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}
	if err := rbac.RequireOwnerOrPrivileged(caller, l.EmployeeID); err != nil {
		return LeaveResponse{}, err
	}

	return mapToResponse(*l), nil
}

func (s *service) List(ctx context.Context, caller rbac.Caller, params ListParams) (ListResult, error) {
	if err := rbac.RequireAuthenticated(caller); err != nil {
		return ListResult{}, err
	}

	f := ListFilter{
		EmployeeID: rbac.ScopeEmployee(caller, params.EmployeeID),
		Pagination: query.NewPagination(params.Pagination.Page, params.Pagination.PageSize),
		Sort:       query.NewSort(params.Sort.Field, params.Sort.Order, DefaultSortField),
	}
	if params.LeaveType != "" {
		lt, ok := leavebalance.ParseLeaveType(params.LeaveType)
		if !ok {
			return ListResult{}, leaveerrors.ErrInvalidLeaveType
		}
		f.LeaveType = lt.String()
	}
	if params.Status != "" {
		st, ok := ParseStatus(params.Status)
		if !ok {
			return ListResult{}, leaveerrors.ErrInvalidStatus
		}
		f.Status = st.String()
	}
	if params.From != "" {
		from, err := parseDate(params.From)
		if err != nil {
			return ListResult{}, err
		}
		f.From = &from
	}
	if params.To != "" {
		to, err := parseDate(params.To)
		if err != nil {
			return ListResult{}, err
		}
		f.To = &to
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return ListResult{}, leaveerrors.ErrInvalidDateRange
	}

	rows, total, err := s.repo.List(ctx, caller.CompanyID.String(), f)
	if err != nil {
		contextutil.GetLogger(ctx, s.logger).Error("list leave requests failed", zap.Error(err))
		return ListResult{}, mapRepositoryError(err)
	}

	return ListResult{
		Rows:       rows,
		Total:      total,
		Page:       f.Pagination.Page,
		PageSize:   f.Pagination.PageSize,
		TotalPages: f.Pagination.TotalPages(total),
	}, nil
}

func (s *service) enqueue(ctx context.Context, tx *sql.Tx, l *LeaveRequest, actor uuid.UUID, comment string) error {
	if s.outbox == nil {
		return nil
	}
	rid := contextutil.GetRequestID(ctx)

	event := events.LeaveRequestEvent{
		EventType:      eventTypeFor(l.Status),
		RequestID:      rid,
		LeaveRequestID: l.ID.String(),
		RequestNumber:  l.RequestNumber,
		CompanyID:      l.CompanyID.String(),
		EmployeeID:     l.EmployeeID.String(),
		LeaveType:      l.LeaveType.String(),
		StartDate:      l.StartDate.Format(dateLayout),
		EndDate:        l.EndDate.Format(dateLayout),
		TotalDays:      l.TotalDays,
		Status:         l.Status.String(),
		ActorID:        actor.String(),
		Comment:        comment,
		OccurredAt:     s.now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal leave event failed", zap.String("request_id", rid), zap.Error(err))
		return err
	}

	if err := s.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     rid,
		AggregateType: "leave_request",
		AggregateID:   l.ID.String(),
		EventType:     event.EventType,
		Topic:         events.LeaveRequestTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}); err != nil {
		s.logger.Error("leave outbox persist failed",
			zap.String("leave_id", l.ID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, l *LeaveRequest) {
	if s.balances == nil {
		return
	}
	s.balances.Invalidate(ctx, l.CompanyID.String(), l.EmployeeID.String(), l.Year())
}

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return leaveerrors.ErrLeaveNotFound
	}
	return err
}

func mapToResponse(l LeaveRequest) LeaveResponse {
	resp := LeaveResponse{
		ID:            l.ID.String(),
		RequestNumber: l.RequestNumber,
		CompanyID:     l.CompanyID.String(),
		EmployeeID:    l.EmployeeID.String(),
		LeaveType:     l.LeaveType.String(),
		StartDate:     l.StartDate.Format(dateLayout),
		EndDate:       l.EndDate.Format(dateLayout),
		TotalDays:     l.TotalDays,
		HalfDay:       l.HalfDay,
		Reason:        l.Reason,
		Status:        l.Status.String(),
		CreatedBy:     l.CreatedBy.String(),
		ReviewedAt:    l.ReviewedAt,
		ReviewComment: l.ReviewComment,
		CancelledAt:   l.CancelledAt,
		CreatedAt:     l.CreatedAt,
	}
	if l.ReviewedBy != nil {
		v := l.ReviewedBy.String()
		resp.ReviewedBy = &v
	}
	if l.CancelledBy != nil {
		v := l.CancelledBy.String()
		resp.CancelledBy = &v
	}
	return resp
}
