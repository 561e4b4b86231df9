// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"demoshop/internal/pkg/config"
	"demoshop/internal/pkg/logger"
	"demoshop/internal/pkg/nacos"
	"demoshop/internal/pkg/tracing"
	"demoshop/internal/pkg/utils"

	"golang.org/x/sync/errgroup"
)

type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client // Nacos 未启用时为 nil
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 每个服务注册自己独特的 HTTP 路由

	// StartWorkers 启动后台任务（消费者等），返回对应的停止函数。
	// ctx 在进程收到退出信号时被取消。
	StartWorkers func(ctx context.Context, appCtx AppCtx) (stop func(ctx context.Context), err error)
}

// Init 加载配置并初始化日志。必须在 StartService 之前调用一次。
func Init(serviceName string) {
	if err := config.Load(os.Getenv("CONFIG_FILE")); err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, config.Get().Dev)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := config.Get()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. 可选的服务注册
	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		ip, err = utils.GetOutboundIP()
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 3. 创建 HTTP Server
	mux := http.NewServeMux()
	appCtx := AppCtx{Mux: mux, Nacos: namingClient}
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(appCtx)
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}

	// workerCtx 在收到退出信号时取消，通知后台任务收尾
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var stopWorkers func(ctx context.Context)
	if info.StartWorkers != nil {
		stopWorkers, err = info.StartWorkers(workerCtx, appCtx)
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to start background workers")
		}
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		logger.Logger().Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 4. 优雅关停：阻塞主 goroutine，直到接收到退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger().Info().Msgf("Shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 清理按后进先出执行
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.Logger().Error().Err(err).Msg("Error deregistering from Nacos")
		}
	}

	cancelWorkers()
	if stopWorkers != nil {
		stopWorkers(ctx)
	}

	// 关闭 Tracer Provider，确保缓冲中的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("Error shutting down tracer provider")
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("Error shutting down http server")
	}
	if err := g.Wait(); err != nil {
		logger.Logger().Error().Err(err).Msg("http server exited with error")
	}

	logger.Logger().Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}
