package leave_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/leave"
	leaveerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/leave/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/middleware"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"
	rbacerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/rbac/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiMeta struct {
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
}

type apiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Meta  *apiMeta        `json:"meta"`
	Error *apiError       `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

type fakeLeaveService struct {
	submitFn  func(ctx context.Context, caller rbac.Caller, req leave.SubmitLeaveRequest) (leave.LeaveResponse, error)
	reviewFn  func(ctx context.Context, caller rbac.Caller, id string, decision leave.Decision, comment string) (leave.LeaveResponse, error)
	cancelFn  func(ctx context.Context, caller rbac.Caller, id, comment string) (leave.LeaveResponse, error)
	getByIDFn func(ctx context.Context, caller rbac.Caller, id string) (leave.LeaveResponse, error)
	listFn    func(ctx context.Context, caller rbac.Caller, params leave.ListParams) (leave.ListResult, error)
}

func (f *fakeLeaveService) Submit(ctx context.Context, caller rbac.Caller, req leave.SubmitLeaveRequest) (leave.LeaveResponse, error) {
	return f.submitFn(ctx, caller, req)
}
func (f *fakeLeaveService) Review(ctx context.Context, caller rbac.Caller, id string, decision leave.Decision, comment string) (leave.LeaveResponse, error) {
	return f.reviewFn(ctx, caller, id, decision, comment)
}
func (f *fakeLeaveService) Cancel(ctx context.Context, caller rbac.Caller, id, comment string) (leave.LeaveResponse, error) {
	return f.cancelFn(ctx, caller, id, comment)
}
func (f *fakeLeaveService) GetByID(ctx context.Context, caller rbac.Caller, id string) (leave.LeaveResponse, error) {
	return f.getByIDFn(ctx, caller, id)
}
func (f *fakeLeaveService) List(ctx context.Context, caller rbac.Caller, params leave.ListParams) (leave.ListResult, error) {
	return f.listFn(ctx, caller, params)
}

func newLeaveRouter(t *testing.T, svc leave.Service, caller rbac.Caller) *gin.Engine {
	t.Helper()
	return newLimitedLeaveRouter(t, svc, caller, middleware.RateLimitByUser(rate.Inf, 1))
}

func newLimitedLeaveRouter(t *testing.T, svc leave.Service, caller rbac.Caller, userLimit gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := rbac.NewEnforcer()
	require.NoError(t, err)

	auth := func(c *gin.Context) {
		middleware.SetCaller(c, caller)
		c.Next()
	}

	r := gin.New()
	leave.RegisterRoutes(r.Group("/api/v1"), leave.NewHandler(svc, zap.NewNop()), auth, userLimit, rbac.NewService(enforcer, zap.NewNop()), nil)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLeaveHandler_Create(t *testing.T) {
	companyID := uuid.New()
	alice := newCaller(companyID, rbac.RoleEmployee)

	t.Run("success", func(t *testing.T) {
		svc := &fakeLeaveService{
			submitFn: func(ctx context.Context, caller rbac.Caller, req leave.SubmitLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, alice, caller)
				assert.Equal(t, "vacation", req.LeaveType)
				assert.True(t, req.HalfDay)
				return leave.LeaveResponse{
					ID:            uuid.NewString(),
					RequestNumber: "LV-000007",
					EmployeeID:    caller.EmployeeID.String(),
					LeaveType:     req.LeaveType,
					StartDate:     req.StartDate,
					EndDate:       req.EndDate,
					TotalDays:     decimal.RequireFromString("0.5"),
					Status:        "pending",
				}, nil
			},
		}
		r := newLeaveRouter(t, svc, alice)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves",
			`{"leave_type":"vacation","start_date":"2026-03-10","end_date":"2026-03-10","half_day":true}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
		var got leave.LeaveResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "LV-000007", got.RequestNumber)
		assert.True(t, got.TotalDays.Equal(decimal.RequireFromString("0.5")))
		assert.Equal(t, "pending", got.Status)
	})

	t.Run("missing required field", func(t *testing.T) {
		r := newLeaveRouter(t, &fakeLeaveService{}, alice)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves", `{"leave_type":"vacation"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	})

	t.Run("service error keeps its status", func(t *testing.T) {
		svc := &fakeLeaveService{
			submitFn: func(ctx context.Context, caller rbac.Caller, req leave.SubmitLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrLeaveOverlap
			},
		}
		r := newLeaveRouter(t, svc, alice)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves",
			`{"leave_type":"vacation","start_date":"2026-03-10","end_date":"2026-03-11"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CONFLICT", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})

	t.Run("unexpected error is hidden", func(t *testing.T) {
		svc := &fakeLeaveService{
			submitFn: func(ctx context.Context, caller rbac.Caller, req leave.SubmitLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, errors.New("pq: connection reset")
			},
		}
		r := newLeaveRouter(t, svc, alice)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves",
			`{"leave_type":"vacation","start_date":"2026-03-10","end_date":"2026-03-11"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
		assert.NotContains(t, env.Error.Message, "pq")
	})
}

func TestLeaveHandler_List(t *testing.T) {
	companyID := uuid.New()
	bob := newCaller(companyID, rbac.RoleManager)
	target := uuid.New()

	t.Run("passes filters and returns meta", func(t *testing.T) {
		svc := &fakeLeaveService{
			listFn: func(ctx context.Context, caller rbac.Caller, params leave.ListParams) (leave.ListResult, error) {
				require.NotNil(t, params.EmployeeID)
				assert.Equal(t, target, *params.EmployeeID)
				assert.Equal(t, "pending", params.Status)
				assert.Equal(t, "2026-01-01", params.From)
				assert.Equal(t, 2, params.Pagination.Page)
				assert.Equal(t, 5, params.Pagination.PageSize)
				assert.Equal(t, "start_date", params.Sort.Field)
				assert.Equal(t, "asc", params.Sort.Order)
				return leave.ListResult{
					Rows:     []leave.LeaveRow{{EmployeeName: "Alice A"}},
					Total:    6,
					Page:     2,
					PageSize: 5,
				}, nil
			},
		}
		r := newLeaveRouter(t, svc, bob)

		w := doRequest(r, http.MethodGet,
			"/api/v1/leaves?employee_id="+target.String()+"&status=pending&from=2026-01-01&page=2&page_size=5&sort=start_date&order=asc", "")

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		require.NotNil(t, env.Meta)
		assert.Equal(t, int64(6), env.Meta.Total)
		assert.Equal(t, 2, env.Meta.TotalPages)
		var rows []leave.LeaveRow
		require.NoError(t, json.Unmarshal(env.Data, &rows))
		assert.Equal(t, "Alice A", rows[0].EmployeeName)
	})

	t.Run("malformed employee id", func(t *testing.T) {
		r := newLeaveRouter(t, &fakeLeaveService{}, bob)

		w := doRequest(r, http.MethodGet, "/api/v1/leaves?employee_id=abc", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLeaveHandler_Review(t *testing.T) {
	companyID := uuid.New()
	id := uuid.NewString()

	t.Run("approve with empty body", func(t *testing.T) {
		bob := newCaller(companyID, rbac.RoleManager)
		svc := &fakeLeaveService{
			reviewFn: func(ctx context.Context, caller rbac.Caller, gotID string, decision leave.Decision, comment string) (leave.LeaveResponse, error) {
				assert.Equal(t, id, gotID)
				assert.Equal(t, leave.DecisionApprove, decision)
				assert.Empty(t, comment)
				return leave.LeaveResponse{ID: gotID, Status: "approved"}, nil
			},
		}
		r := newLeaveRouter(t, svc, bob)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves/"+id+"/approve", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("reject forwards comment", func(t *testing.T) {
		bob := newCaller(companyID, rbac.RoleManager)
		svc := &fakeLeaveService{
			reviewFn: func(ctx context.Context, caller rbac.Caller, gotID string, decision leave.Decision, comment string) (leave.LeaveResponse, error) {
				assert.Equal(t, leave.DecisionReject, decision)
				assert.Equal(t, "short staffed", comment)
				return leave.LeaveResponse{ID: gotID, Status: "rejected"}, nil
			},
		}
		r := newLeaveRouter(t, svc, bob)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves/"+id+"/reject", `{"comment":"short staffed"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("employee is stopped by policy", func(t *testing.T) {
		alice := newCaller(companyID, rbac.RoleEmployee)
		r := newLeaveRouter(t, &fakeLeaveService{}, alice)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves/"+id+"/approve", "")

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})

	t.Run("lost race maps to conflict", func(t *testing.T) {
		bob := newCaller(companyID, rbac.RoleManager)
		svc := &fakeLeaveService{
			reviewFn: func(ctx context.Context, caller rbac.Caller, gotID string, decision leave.Decision, comment string) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrInvalidTransition
			},
		}
		r := newLeaveRouter(t, svc, bob)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves/"+id+"/approve", "")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "INVALID_STATE", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})
}

func TestLeaveHandler_CancelAndGet(t *testing.T) {
	companyID := uuid.New()
	alice := newCaller(companyID, rbac.RoleEmployee)
	id := uuid.NewString()

	t.Run("cancel", func(t *testing.T) {
		svc := &fakeLeaveService{
			cancelFn: func(ctx context.Context, caller rbac.Caller, gotID, comment string) (leave.LeaveResponse, error) {
				assert.Equal(t, id, gotID)
				assert.Equal(t, "sorry", comment)
				return leave.LeaveResponse{ID: gotID, Status: "cancelled"}, nil
			},
		}
		r := newLeaveRouter(t, svc, alice)

		w := doRequest(r, http.MethodPost, "/api/v1/leaves/"+id+"/cancel", `{"comment":"sorry"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("get forbidden", func(t *testing.T) {
		svc := &fakeLeaveService{
			getByIDFn: func(ctx context.Context, caller rbac.Caller, gotID string) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, rbacerrors.ErrNotOwner
			},
		}
		r := newLeaveRouter(t, svc, alice)

		w := doRequest(r, http.MethodGet, "/api/v1/leaves/"+id, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("get not found", func(t *testing.T) {
		svc := &fakeLeaveService{
			getByIDFn: func(ctx context.Context, caller rbac.Caller, gotID string) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrLeaveNotFound
			},
		}
		r := newLeaveRouter(t, svc, alice)

		w := doRequest(r, http.MethodGet, "/api/v1/leaves/"+id, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})
}

func TestLeaveHandler_UserRateLimit(t *testing.T) {
	companyID := uuid.New()
	alice := newCaller(companyID, rbac.RoleEmployee)
	id := uuid.NewString()
	svc := &fakeLeaveService{
		cancelFn: func(ctx context.Context, caller rbac.Caller, gotID, comment string) (leave.LeaveResponse, error) {
			return leave.LeaveResponse{ID: gotID, Status: "cancelled"}, nil
		},
	}
	r := newLimitedLeaveRouter(t, svc, alice, middleware.RateLimitByUser(rate.Limit(0.001), 1))

	first := doRequest(r, http.MethodPost, "/api/v1/leaves/"+id+"/cancel", "")
	second := doRequest(r, http.MethodPost, "/api/v1/leaves/"+id+"/cancel", "")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decodeEnvelope(t, second.Body.Bytes()).Error.Code)
}
