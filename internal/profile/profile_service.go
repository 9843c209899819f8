package profile

import (
	"context"
	"encoding/json"
	"time"

	profileerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/profile/errors"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	ProfileKeyPrefix = "profiles:"
	profileCacheTTL  = 5 * time.Minute
)

func GetProfileKey(companyID, employeeID string) string {
	return ProfileKeyPrefix + companyID + ":" + employeeID
}

type Service interface {
	GetByID(ctx context.Context, companyID, employeeID string) (ProfileResponse, error)
	ResolveCaller(ctx context.Context, userID, companyID, employeeID string) (rbac.Caller, error)
	Invalidate(ctx context.Context, companyID, employeeID string)
}

type service struct {
	repo   Repository
	rdb    *redis.Client
	sf     *singleflight.Group
	logger *zap.Logger
}

func NewService(repo Repository, rdb *redis.Client, logger ...*zap.Logger) Service {
	l := zap.L().Named("profile.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("profile.service")
	}
	return &service{
		repo:   repo,
		rdb:    rdb,
		sf:     &singleflight.Group{},
		logger: l,
	}
}

func (s *service) GetByID(ctx context.Context, companyID, employeeID string) (ProfileResponse, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return ProfileResponse{}, profileerrors.ErrInvalidCompanyID
	}
	if _, err := uuid.Parse(employeeID); err != nil {
		return ProfileResponse{}, profileerrors.ErrInvalidEmployeeID
	}

	cacheKey := GetProfileKey(companyID, employeeID)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var resp ProfileResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return resp, nil
			}
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		p, err := s.repo.FindByIDAndCompany(ctx, companyID, employeeID)
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		resp := mapToResponse(*p)

		if s.rdb != nil {
			if jsonData, err := json.Marshal(resp); err == nil {
				if err := s.rdb.Set(ctx, cacheKey, jsonData, profileCacheTTL).Err(); err != nil {
					s.logger.Warn("cache profile failed", zap.String("key", cacheKey), zap.Error(err))
				}
			}
		}
		return resp, nil
	})
	if err != nil {
		s.logger.Debug("get profile failed",
			zap.String("company_id", companyID),
			zap.String("employee_id", employeeID),
			zap.Error(err),
		)
		return ProfileResponse{}, err
	}

	return v.(ProfileResponse), nil
}

// ResolveCaller builds the authorization identity from the stored profile.
// The role always comes from the profile, never from the token.
func (s *service) ResolveCaller(ctx context.Context, userID, companyID, employeeID string) (rbac.Caller, error) {
	p, err := s.GetByID(ctx, companyID, employeeID)
	if err != nil {
		return rbac.Caller{}, err
	}

	role, err := rbac.ParseRole(p.Role)
	if err != nil {
		s.logger.Warn("profile has invalid role",
			zap.String("employee_id", employeeID),
			zap.String("role", p.Role),
		)
		return rbac.Caller{}, profileerrors.ErrProfileRoleInvalid
	}

	return rbac.Caller{
		UserID:     userID,
		EmployeeID: uuid.MustParse(p.ID),
		CompanyID:  uuid.MustParse(p.CompanyID),
		Role:       role,
	}, nil
}

func (s *service) Invalidate(ctx context.Context, companyID, employeeID string) {
	if s.rdb == nil {
		return
	}
	cacheKey := GetProfileKey(companyID, employeeID)
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Error("failed to invalidate profile cache",
			zap.Error(err),
			zap.String("key", cacheKey),
		)
	}
}

func mapToResponse(p Profile) ProfileResponse {
	resp := ProfileResponse{
		ID:          p.ID.String(),
		CompanyID:   p.CompanyID.String(),
		DisplayName: p.Name(),
		LegalName:   p.LegalName(),
		AvatarURL:   p.AvatarURL,
		OrgUnitCode: p.OrgUnitCode,
		Role:        p.Role,
	}
	if p.DepartmentID != nil {
		resp.DepartmentID = p.DepartmentID.String()
	}
	if p.LocationID != nil {
		resp.LocationID = p.LocationID.String()
	}
	return resp
}
