package leavebalance

import (
	"errors"

	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return leavebalanceerrors.ErrBalanceNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_leave_balance_key" {
		return leavebalanceerrors.ErrConcurrentUpdate
	}

	return err
}
