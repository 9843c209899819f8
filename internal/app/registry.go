package app

import (
	"database/sql"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/bootstrap"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/config"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/leave"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/middleware"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/profile"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/rbac"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/counter"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func balanceSettings(cfg config.LeaveConfig) (leavebalance.Settings, error) {
	defaults, err := leavebalance.ParseDefaults(cfg.DefaultEntitlements)
	if err != nil {
		return leavebalance.Settings{}, err
	}
	return leavebalance.Settings{
		CacheTTL:            cfg.BalanceCacheTTL,
		DefaultEntitlements: defaults,
	}, nil
}

func registerModules(
	router *gin.Engine,
	cfg config.Config,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
	auditLogger bootstrap.AuditLogger,
	logger *zap.Logger,
) error {
	settings, err := balanceSettings(cfg.Leave)
	if err != nil {
		return err
	}

	// --- Repositories ---
	profileRepo := profile.NewRepository(gormDB)
	balanceRepo := leavebalance.NewRepository(gormDB)
	leaveRepo := leave.NewRepository(gormDB)
	counterRepo := counter.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- RBAC Core ---
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		return err
	}
	rbacService := rbac.NewService(enforcer, logger)

	// --- Services ---
	profileService := profile.NewService(profileRepo, rdb, logger)
	balanceService := leavebalance.NewService(db, balanceRepo, rdb, settings, logger)
	ledger := leavebalance.NewLedger(balanceRepo, cfg.Leave.RequireProvisionedBalance, logger)
	leaveService := leave.NewServiceWithOutbox(
		db,
		leaveRepo,
		ledger,
		counterRepo,
		outboxRepo,
		balanceService,
		auditLogger,
		logger,
	)

	// --- Handlers ---
	profileHandler := profile.NewHandler(profileService, logger)
	balanceHandler := leavebalance.NewHandler(balanceService, logger)
	leaveHandler := leave.NewHandler(leaveService, logger)

	auth := middleware.AuthMiddleware(cfg.Auth.JWTSecret, profileService)
	userLimit := middleware.RateLimitByUser(rate.Limit(cfg.Limiter.UserRequestsPerSecond), cfg.Limiter.UserBurst)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		profile.RegisterRoutes(api, profileHandler, auth)
		leavebalance.RegisterRoutes(api, balanceHandler, auth, rbacService)
		leave.RegisterRoutes(api, leaveHandler, auth, userLimit, rbacService, rdb)
	}

	return nil
}
