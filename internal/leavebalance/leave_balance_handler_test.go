package leavebalance_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"
	leavebalanceerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/middleware"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type handlerBalanceService struct {
	leavebalance.Service
	getBalancesFn func(ctx context.Context, caller rbac.Caller, employeeID string, year int) ([]leavebalance.BalanceResponse, error)
	listFn        func(ctx context.Context, caller rbac.Caller, params leavebalance.ListParams) (leavebalance.ListResult, error)
	provisionFn   func(ctx context.Context, caller rbac.Caller, req leavebalance.ProvisionRequest) (leavebalance.BalanceResponse, error)
	reconcileFn   func(ctx context.Context, caller rbac.Caller, employeeID string, year int) (leavebalance.ReconcileResponse, error)
	yearFn        func(ctx context.Context, caller rbac.Caller, year int) (leavebalance.ProvisionYearResponse, error)
}

func (f *handlerBalanceService) GetBalances(ctx context.Context, caller rbac.Caller, employeeID string, year int) ([]leavebalance.BalanceResponse, error) {
	return f.getBalancesFn(ctx, caller, employeeID, year)
}
func (f *handlerBalanceService) List(ctx context.Context, caller rbac.Caller, params leavebalance.ListParams) (leavebalance.ListResult, error) {
	return f.listFn(ctx, caller, params)
}
func (f *handlerBalanceService) Provision(ctx context.Context, caller rbac.Caller, req leavebalance.ProvisionRequest) (leavebalance.BalanceResponse, error) {
	return f.provisionFn(ctx, caller, req)
}
func (f *handlerBalanceService) Reconcile(ctx context.Context, caller rbac.Caller, employeeID string, year int) (leavebalance.ReconcileResponse, error) {
	return f.reconcileFn(ctx, caller, employeeID, year)
}

func (f *handlerBalanceService) ProvisionYear(ctx context.Context, caller rbac.Caller, year int) (leavebalance.ProvisionYearResponse, error) {
	return f.yearFn(ctx, caller, year)
}

func newBalanceRouter(t *testing.T, svc leavebalance.Service, caller rbac.Caller) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := rbac.NewEnforcer()
	require.NoError(t, err)
	auth := func(c *gin.Context) {
		middleware.SetCaller(c, caller)
		c.Next()
	}

	r := gin.New()
	leavebalance.RegisterRoutes(r.Group("/api/v1"), leavebalance.NewHandler(svc, zap.NewNop()), auth, rbac.NewService(enforcer, zap.NewNop()))
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBalanceHandler_Me(t *testing.T) {
	alice := newCaller(uuid.New(), rbac.RoleEmployee)

	t.Run("defaults to current year", func(t *testing.T) {
		svc := &handlerBalanceService{
			getBalancesFn: func(ctx context.Context, caller rbac.Caller, employeeID string, year int) ([]leavebalance.BalanceResponse, error) {
				assert.Equal(t, alice.EmployeeID.String(), employeeID)
				assert.Equal(t, time.Now().Year(), year)
				return []leavebalance.BalanceResponse{{LeaveType: "vacation", AvailableDays: d("12")}}, nil
			},
		}

		w := serve(newBalanceRouter(t, svc, alice), http.MethodGet, "/api/v1/leave-balances/me", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var env apiEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		var got []leavebalance.BalanceResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.True(t, got[0].AvailableDays.Equal(d("12")))
	})

	t.Run("bad year", func(t *testing.T) {
		w := serve(newBalanceRouter(t, &handlerBalanceService{}, alice), http.MethodGet, "/api/v1/leave-balances/me?year=abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBalanceHandler_GetForEmployee(t *testing.T) {
	bob := newCaller(uuid.New(), rbac.RoleManager)
	target := uuid.NewString()

	svc := &handlerBalanceService{
		getBalancesFn: func(ctx context.Context, caller rbac.Caller, employeeID string, year int) ([]leavebalance.BalanceResponse, error) {
			assert.Equal(t, target, employeeID)
			assert.Equal(t, 2025, year)
			return nil, leavebalanceerrors.ErrEmployeeNotFound
		},
	}

	w := serve(newBalanceRouter(t, svc, bob), http.MethodGet, "/api/v1/employees/"+target+"/leave-balances?year=2025", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBalanceHandler_Provision(t *testing.T) {
	admin := newCaller(uuid.New(), rbac.RoleAdmin)
	target := uuid.NewString()

	t.Run("admin provisions", func(t *testing.T) {
		svc := &handlerBalanceService{
			provisionFn: func(ctx context.Context, caller rbac.Caller, req leavebalance.ProvisionRequest) (leavebalance.BalanceResponse, error) {
				assert.Equal(t, target, req.EmployeeID)
				assert.True(t, req.EntitledDays.Equal(d("12.5")))
				return leavebalance.BalanceResponse{EmployeeID: req.EmployeeID, EntitledDays: req.EntitledDays}, nil
			},
		}

		w := serve(newBalanceRouter(t, svc, admin), http.MethodPut, "/api/v1/leave-balances",
			`{"employee_id":"`+target+`","leave_type":"vacation","year":2026,"entitled_days":"12.5"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("manager is denied by policy", func(t *testing.T) {
		bob := newCaller(uuid.New(), rbac.RoleManager)
		w := serve(newBalanceRouter(t, &handlerBalanceService{}, bob), http.MethodPut, "/api/v1/leave-balances",
			`{"employee_id":"`+target+`","leave_type":"vacation","year":2026,"entitled_days":1}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("binding failure", func(t *testing.T) {
		w := serve(newBalanceRouter(t, &handlerBalanceService{}, admin), http.MethodPut, "/api/v1/leave-balances",
			`{"employee_id":"nope","leave_type":"vacation","year":2026}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBalanceHandler_ProvisionYear(t *testing.T) {
	admin := newCaller(uuid.New(), rbac.RoleAdmin)

	t.Run("admin provisions the requested year", func(t *testing.T) {
		svc := &handlerBalanceService{
			yearFn: func(ctx context.Context, caller rbac.Caller, year int) (leavebalance.ProvisionYearResponse, error) {
				assert.Equal(t, admin.EmployeeID, caller.EmployeeID)
				return leavebalance.ProvisionYearResponse{Year: year, Employees: 4, RowsCreated: 8}, nil
			},
		}

		w := serve(newBalanceRouter(t, svc, admin), http.MethodPost, "/api/v1/leave-balances/provision-defaults?year=2027", "")
		require.Equal(t, http.StatusOK, w.Code)

		var env apiEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		var got leavebalance.ProvisionYearResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, leavebalance.ProvisionYearResponse{Year: 2027, Employees: 4, RowsCreated: 8}, got)
	})

	t.Run("bad year", func(t *testing.T) {
		w := serve(newBalanceRouter(t, &handlerBalanceService{}, admin), http.MethodPost, "/api/v1/leave-balances/provision-defaults?year=next", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("manager is denied by policy", func(t *testing.T) {
		bob := newCaller(uuid.New(), rbac.RoleManager)
		w := serve(newBalanceRouter(t, &handlerBalanceService{}, bob), http.MethodPost, "/api/v1/leave-balances/provision-defaults", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestBalanceHandler_Reconcile(t *testing.T) {
	admin := newCaller(uuid.New(), rbac.RoleOwner)
	target := uuid.NewString()

	svc := &handlerBalanceService{
		reconcileFn: func(ctx context.Context, caller rbac.Caller, employeeID string, year int) (leavebalance.ReconcileResponse, error) {
			return leavebalance.ReconcileResponse{EmployeeID: employeeID, Year: year, Lines: []leavebalance.ReconcileLine{}}, nil
		},
	}

	w := serve(newBalanceRouter(t, svc, admin), http.MethodPost, "/api/v1/employees/"+target+"/leave-balances/reconcile?year=2026", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBalanceHandler_List(t *testing.T) {
	bob := newCaller(uuid.New(), rbac.RoleManager)

	svc := &handlerBalanceService{
		listFn: func(ctx context.Context, caller rbac.Caller, params leavebalance.ListParams) (leavebalance.ListResult, error) {
			assert.Equal(t, 2026, params.Year)
			assert.Equal(t, "legal_name", params.Sort.Field)
			return leavebalance.ListResult{Rows: []leavebalance.BalanceRow{}, Total: 0, Page: 1, PageSize: 10}, nil
		},
	}

	w := serve(newBalanceRouter(t, svc, bob), http.MethodGet, "/api/v1/leave-balances?year=2026&sort=legal_name", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(newBalanceRouter(t, svc, bob), http.MethodGet, "/api/v1/leave-balances?employee_id=zzz", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
