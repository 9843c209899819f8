package app

import (
	"github.com/kenjisciometa/shift-management-app-sub004/internal/bootstrap"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/config"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/connection"

	"go.uber.org/zap"
)

// RunAPI connects infrastructure, mounts every module and serves HTTP until
// the process is signalled.
func RunAPI(cfg config.Config, logger *zap.Logger) error {
	log := logger.Named("app.api")

	gormDB, err := connection.ConnectGORMWithRetry(cfg.DB)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	redisClient, err := connection.ConnectRedisWithRetry(cfg.Redis.Addr, cfg.DB.MaxRetries)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	auditLogger := bootstrap.NewStdoutAuditLogger(logger)
	router := bootstrap.NewRouter(cfg, logger)

	if err := registerModules(router, cfg, sqlDB, gormDB, redisClient, auditLogger, logger); err != nil {
		return err
	}
	log.Info("modules registered")

	return bootstrap.StartHTTPServer(router, bootstrap.DefaultServerConfig(cfg.Port), auditLogger)
}
