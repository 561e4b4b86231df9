// cmd/inventory-service/main.go
package main

import (
	"net/http"

	"demoshop/internal/pkg/bootstrap"
	"demoshop/internal/pkg/config"
	"demoshop/internal/pkg/logger"
	"demoshop/internal/service/inventory/application"
	"demoshop/internal/service/inventory/infrastructure"
	"demoshop/internal/service/inventory/interfaces"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	serviceName = "inventory-service"
	servicePort = 8086
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init(serviceName)
	cfg := config.Get()

	// TranslateError 让唯一键冲突映射为 gorm.ErrDuplicatedKey
	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to connect to mysql")
	}

	repo := infrastructure.NewGormInventoryRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to migrate inventory schema")
	}

	svc := application.NewService(repo, cfg.Inventory.MaxConflictRetries)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())

			handler := interfaces.NewInventoryHTTPHandler(svc, otel.Tracer(serviceName))
			handler.Register(appCtx.Mux)
		},
	})
}
