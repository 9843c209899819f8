package counter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/counter"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRepository_GetNextValue(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	repo := counter.NewRepository(gdb)

	t.Run("runs inside the caller transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO company_counters`).
			WithArgs("company-1", "leave_request_number").
			WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))
		mock.ExpectCommit()

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		got, err := repo.WithTx(tx).GetNextValue(ctx, "company-1", "leave_request_number")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.Equal(t, int64(7), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO company_counters`).
			WillReturnError(errors.New("deadlock detected"))

		_, err := repo.GetNextValue(ctx, "company-1", "leave_request_number")
		assert.EqualError(t, err, "deadlock detected")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
