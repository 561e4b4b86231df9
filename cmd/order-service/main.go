// cmd/order-service/main.go
package main

import (
	"context"
	"net/http"

	"demoshop/internal/pkg/bootstrap"
	"demoshop/internal/pkg/config"
	"demoshop/internal/pkg/httpclient"
	"demoshop/internal/pkg/logger"
	"demoshop/internal/pkg/mq"
	"demoshop/internal/pkg/redis"
	"demoshop/internal/service/order/application"
	"demoshop/internal/service/order/infrastructure"
	"demoshop/internal/service/order/infrastructure/adapter"
	"demoshop/internal/service/order/interfaces"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	serviceName = "order-service"
	servicePort = 8085
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

	orderRepo := infrastructure.NewGormOrderRepository(db)
	if err := orderRepo.AutoMigrate(); err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to migrate order schema")
	}

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize redis client")
	}

	tracer := otel.Tracer(serviceName)

	// 出站端口：库存 HTTP 适配器 + Redis 幂等锁。
	// 下单流程直连适配器；窗口缓存只给展示路径用。
	inventoryAdapter := adapter.NewInventoryHTTPAdapter(httpclient.NewClient(tracer), cfg.Order.InventoryBaseURL)
	cachedInventory := adapter.NewCachedInventoryService(inventoryAdapter, cfg.Order.QuantityCacheWindow.Std())
	guard := adapter.NewRedisIdempotencyGuard(redisClient, cfg.Order.IdempotencyKeyTTL.Std())

	appSvc := application.NewOrderApplicationService(
		orderRepo,
		inventoryAdapter,
		guard,
		cfg.Order.ProcessingTimeout.Std(),
		cfg.Order.DefaultPaymentMethod,
		tracer,
	)

	// 消费侧：结账主题 + 死信主题
	dltWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.DltTopic)
	checkoutReader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.CheckoutTopic, cfg.Infra.Kafka.GroupID)
	dltReader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.DltTopic, cfg.Infra.Kafka.GroupID+"-dlt")

	checkoutConsumer := interfaces.NewCheckoutConsumerAdapter(
		checkoutReader,
		cfg.Infra.Kafka.Brokers,
		appSvc,
		mq.NewFailureHandler(dltWriter),
		cfg.Order.ConnectRetryBackoff.Std(),
		cfg.Order.HandleMaxRetries,
		cfg.Order.HandleRetryBackoff.Std(),
	)
	dltConsumer := interfaces.NewDltConsumerAdapter(dltReader, cfg.Order.ConnectRetryBackoff.Std())

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())

			handler := interfaces.NewOrderHTTPHandler(appSvc, cachedInventory, tracer)
			handler.Register(appCtx.Mux)
		},
		StartWorkers: func(ctx context.Context, appCtx bootstrap.AppCtx) (func(ctx context.Context), error) {
			if err := checkoutConsumer.Start(ctx); err != nil {
				return nil, err
			}
			if err := dltConsumer.Start(ctx); err != nil {
				return nil, err
			}
			return func(stopCtx context.Context) {
				checkoutConsumer.Stop(stopCtx)
				dltConsumer.Stop(stopCtx)
				dltWriter.Close()
				redisClient.Close()
			}, nil
		},
	})
}
