package leavebalance_test

import (
	"context"
	"testing"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"
	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGormMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	return gdb, mock
}

func TestRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("bumps version when unchanged", func(t *testing.T) {
		gdb, mock := newGormMock(t)
		repo := leavebalance.NewRepository(gdb)
		b := leavebalance.NewBalance(testKey(), d("10"))
		b.Version = 4

		mock.ExpectExec(`UPDATE "leave_balances" SET .*"version"=version \+ 1.* WHERE .*id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(ctx, b))
		assert.Equal(t, int64(5), b.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		gdb, mock := newGormMock(t)
		repo := leavebalance.NewRepository(gdb)
		b := leavebalance.NewBalance(testKey(), d("10"))

		mock.ExpectExec(`UPDATE "leave_balances" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Save(ctx, b)
		assert.ErrorIs(t, err, leavebalanceerrors.ErrConcurrentUpdate)
		assert.Equal(t, int64(0), b.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_EmployeeExists(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := leavebalance.NewRepository(gdb)
	k := testKey()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "employees"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.EmployeeExists(context.Background(), k.CompanyID.String(), k.EmployeeID.String())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListEmployeeIDs(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := leavebalance.NewRepository(gdb)
	companyID := uuid.NewString()
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT .*id.* FROM "employees" WHERE company_id = \$1 ORDER BY id`).
		WithArgs(companyID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(first.String()).AddRow(second.String()))

	ids, err := repo.ListEmployeeIDs(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
