package leavebalance_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"
	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func tallies(entitled, used, pending string) leavebalance.Tallies {
	return leavebalance.Tallies{Entitled: d(entitled), Used: d(used), Pending: d(pending)}
}

func TestApply(t *testing.T) {
	cases := []struct {
		name       string
		start      leavebalance.Tallies
		op         leavebalance.Operation
		days       string
		want       leavebalance.Tallies
		clamped    bool
		shortfall  string
		wantErr    error
		wantAnyErr bool
	}{
		{name: "submit adds pending", start: tallies("15", "0", "0"), op: leavebalance.OpSubmit, days: "3", want: tallies("15", "0", "3")},
		{name: "submit half day", start: tallies("15", "0", "1"), op: leavebalance.OpSubmit, days: "0.5", want: tallies("15", "0", "1.5")},
		{name: "approve moves pending to used", start: tallies("15", "2", "3"), op: leavebalance.OpApprove, days: "3", want: tallies("15", "5", "0")},
		{name: "reject releases pending", start: tallies("15", "2", "3"), op: leavebalance.OpReject, days: "3", want: tallies("15", "2", "0")},
		{name: "cancel releases pending", start: tallies("15", "0", "4"), op: leavebalance.OpCancel, days: "1", want: tallies("15", "0", "3")},
		{name: "approve clamps pending at zero", start: tallies("15", "0", "1"), op: leavebalance.OpApprove, days: "3", want: tallies("15", "3", "0"), clamped: true, shortfall: "2"},
		{name: "cancel clamps pending at zero", start: tallies("15", "0", "0"), op: leavebalance.OpCancel, days: "2", want: tallies("15", "0", "0"), clamped: true, shortfall: "2"},
		{name: "over allocation is allowed", start: tallies("1", "0", "0"), op: leavebalance.OpSubmit, days: "5", want: tallies("1", "0", "5")},
		{name: "zero days rejected", start: tallies("15", "0", "0"), op: leavebalance.OpSubmit, days: "0", wantErr: leavebalanceerrors.ErrInvalidDays},
		{name: "negative days rejected", start: tallies("15", "0", "0"), op: leavebalance.OpApprove, days: "-1", wantErr: leavebalanceerrors.ErrInvalidDays},
		{name: "unknown operation", start: tallies("15", "0", "0"), op: leavebalance.Operation("delete"), days: "1", wantAnyErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, adj, err := leavebalance.Apply(tc.start, tc.op, d(tc.days))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			if tc.wantAnyErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Entitled.Equal(tc.want.Entitled), "entitled %s", got.Entitled)
			assert.True(t, got.Used.Equal(tc.want.Used), "used %s", got.Used)
			assert.True(t, got.Pending.Equal(tc.want.Pending), "pending %s", got.Pending)
			assert.False(t, got.Pending.IsNegative())
			assert.Equal(t, tc.clamped, adj.Clamped)
			if tc.clamped {
				assert.True(t, adj.Shortfall.Equal(d(tc.shortfall)))
			}
		})
	}
}

func TestTallies_Available(t *testing.T) {
	assert.True(t, tallies("15", "3", "2").Available().Equal(d("10")))
	assert.True(t, tallies("1", "0", "2.5").Available().Equal(d("-1.5")))
}

func testKey() leavebalance.Key {
	return leavebalance.Key{
		CompanyID:  uuid.New(),
		EmployeeID: uuid.New(),
		LeaveType:  leavebalance.LeaveTypeVacation,
		Year:       2026,
	}
}

func TestLedger_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("strict mode requires a provisioned row", func(t *testing.T) {
		repo := newMemRepository()
		ledger := leavebalance.NewLedger(repo, true, zap.NewNop())

		_, err := ledger.Apply(ctx, nil, testKey(), leavebalance.OpSubmit, d("1"))
		assert.ErrorIs(t, err, leavebalanceerrors.ErrBalanceNotProvisioned)
		assert.Empty(t, repo.rows)
	})

	t.Run("lazy mode creates a zero row", func(t *testing.T) {
		repo := newMemRepository()
		ledger := leavebalance.NewLedger(repo, false, zap.NewNop())
		k := testKey()

		b, err := ledger.Apply(ctx, nil, k, leavebalance.OpSubmit, d("2"))
		require.NoError(t, err)
		assert.True(t, b.EntitledDays.IsZero())
		assert.True(t, b.PendingDays.Equal(d("2")))
		assert.Equal(t, int64(1), b.Version)

		stored, ok := repo.get(k)
		require.True(t, ok)
		assert.True(t, stored.PendingDays.Equal(d("2")))
	})

	t.Run("lazy mode keeps an existing row", func(t *testing.T) {
		repo := newMemRepository()
		k := testKey()
		repo.seed(k, "10", "0", "0")
		ledger := leavebalance.NewLedger(repo, false, zap.NewNop())

		b, err := ledger.Apply(ctx, nil, k, leavebalance.OpSubmit, d("2"))
		require.NoError(t, err)
		assert.True(t, b.EntitledDays.Equal(d("10")))
		assert.True(t, b.Tallies().Available().Equal(d("8")))
	})

	t.Run("clamp is applied and persisted", func(t *testing.T) {
		repo := newMemRepository()
		k := testKey()
		repo.seed(k, "10", "0", "1")
		ledger := leavebalance.NewLedger(repo, true, zap.NewNop())

		b, err := ledger.Apply(ctx, nil, k, leavebalance.OpApprove, d("3"))
		require.NoError(t, err)
		assert.True(t, b.UsedDays.Equal(d("3")))
		assert.True(t, b.PendingDays.IsZero())
	})

	t.Run("save failure is returned", func(t *testing.T) {
		repo := newMemRepository()
		k := testKey()
		repo.seed(k, "10", "0", "0")
		repo.saveErr = errors.New("disk full")
		ledger := leavebalance.NewLedger(repo, true, zap.NewNop())

		_, err := ledger.Apply(ctx, nil, k, leavebalance.OpSubmit, d("1"))
		assert.EqualError(t, err, "disk full")
	})

	t.Run("concurrent writers never lose an update", func(t *testing.T) {
		repo := newMemRepository()
		k := testKey()
		repo.seed(k, "100", "0", "0")
		ledger := leavebalance.NewLedger(repo, true, zap.NewNop())

		const writers = 40
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					_, err := ledger.Apply(ctx, nil, k, leavebalance.OpSubmit, d("0.5"))
					if errors.Is(err, leavebalanceerrors.ErrConcurrentUpdate) {
						continue
					}
					assert.NoError(t, err)
					return
				}
			}()
		}
		wg.Wait()

		b, _ := repo.get(k)
		assert.True(t, b.PendingDays.Equal(d("20")), "pending %s", b.PendingDays)
		assert.Equal(t, int64(writers), b.Version)
	})
}
