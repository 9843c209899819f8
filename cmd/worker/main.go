package main

import (
	"github.com/kenjisciometa/shift-management-app-sub004/internal/app"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/bootstrap"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/config"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := bootstrap.NewLogger(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	apperror.Init()

	if err := app.RunWorker(cfg, logger); err != nil {
		logger.Fatal("run worker failed", zap.Error(err))
	}
}
