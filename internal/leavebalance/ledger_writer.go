package leavebalance

import (
	"context"
	"database/sql"
	"errors"

	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/contextutil"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger applies request transitions to balance rows inside a caller-owned
// transaction. The caller commits or rolls back.
type Ledger interface {
	Apply(ctx context.Context, tx *sql.Tx, k Key, op Operation, days decimal.Decimal) (*LeaveBalance, error)
}

type ledger struct {
	repo               Repository
	requireProvisioned bool
	logger             *zap.Logger
}

// NewLedger returns a Ledger. With requireProvisioned false a missing row is
// created with zero entitlement before the delta is applied.
func NewLedger(repo Repository, requireProvisioned bool, logger ...*zap.Logger) Ledger {
	l := zap.L().Named("leavebalance.ledger")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leavebalance.ledger")
	}
	return &ledger{repo: repo, requireProvisioned: requireProvisioned, logger: l}
}

func (l *ledger) Apply(ctx context.Context, tx *sql.Tx, k Key, op Operation, days decimal.Decimal) (*LeaveBalance, error) {
	logger := contextutil.GetLogger(ctx, l.logger)
	qtx := l.repo.WithTx(tx)

	if !l.requireProvisioned {
		created, err := qtx.EnsureExists(ctx, NewBalance(k, decimal.Zero))
		if err != nil {
			logger.Error("ledger ensure balance failed", zap.Error(err))
			return nil, mapRepositoryError(err)
		}
		if created {
			logger.Info("ledger created balance with zero entitlement",
				zap.String("employee_id", k.EmployeeID.String()),
				zap.String("leave_type", k.LeaveType.String()),
				zap.Int("year", k.Year),
			)
		}
	}

	b, err := qtx.FindForUpdate(ctx, k)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("ledger balance not provisioned",
				zap.String("employee_id", k.EmployeeID.String()),
				zap.String("leave_type", k.LeaveType.String()),
				zap.Int("year", k.Year),
				zap.String("operation", string(op)),
			)
			return nil, leavebalanceerrors.ErrBalanceNotProvisioned
		}
		logger.Error("ledger lock balance failed", zap.Error(err))
		return nil, err
	}

	next, adj, err := Apply(b.Tallies(), op, days)
	if err != nil {
		return nil, err
	}
	if adj.Clamped {
		logger.Warn("ledger pending days clamped at zero",
			zap.String("balance_id", b.ID.String()),
			zap.String("operation", string(op)),
			zap.String("days", days.String()),
			zap.String("pending_before", b.PendingDays.String()),
			zap.String("shortfall", adj.Shortfall.String()),
		)
	}

	b.SetTallies(next)
	if err := qtx.Save(ctx, b); err != nil {
		logger.Warn("ledger save balance failed",
			zap.String("balance_id", b.ID.String()),
			zap.Error(err),
		)
		return nil, mapRepositoryError(err)
	}

	logger.Debug("ledger applied",
		zap.String("balance_id", b.ID.String()),
		zap.String("operation", string(op)),
		zap.String("days", days.String()),
		zap.String("used", b.UsedDays.String()),
		zap.String("pending", b.PendingDays.String()),
	)
	return b, nil
}
