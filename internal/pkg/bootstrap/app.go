// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/pkg/nacos"
	"marketbot/internal/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

type AppCtx struct {
	Mux    *http.ServeMux
	Config Config
}

// Worker 是随服务一起运行的后台任务 (例如 Kafka 消费者)，ctx 取消时应返回 nil
type Worker func(ctx context.Context) error

// Closer 在关停时执行，按注册顺序的逆序调用
type Closer func(ctx context.Context) error

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 允许每个服务注册自己独特的 HTTP 路由
	Workers          []Worker
	Closers          []Closer
}

// StartService 封装了通用的启动和优雅关停逻辑，阻塞直到收到 SIGINT/SIGTERM 或某个 worker 失败。
func StartService(info AppInfo) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := GetCurrentConfig()
	log := logger.Ctx(ctx)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		return err
	}

	// 2. 可选的服务注册
	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(ctx, cfg.Infra.Nacos)
		if err != nil {
			return err
		}
		if ip, err = GetOutboundIP(); err != nil {
			return err
		}
		if err := namingClient.RegisterServiceInstance(ctx, info.ServiceName, ip, info.Port); err != nil {
			return err
		}
	}

	// 3. HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("🚀 %s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, w := range info.Workers {
		g.Go(func() error { return w(gctx) })
	}

	// 4. 优雅关停: 收到信号或任意 goroutine 失败
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// a. 先从注册中心摘除，避免新流量进来
		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(shutdownCtx, info.ServiceName, ip, info.Port); err != nil {
				log.Error().Err(err).Msg("Error deregistering from Nacos")
			}
			namingClient.Close()
		}
		// b. 关闭 HTTP 服务器
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		}
		// c. 后进先出关闭资源
		for i := len(info.Closers) - 1; i >= 0; i-- {
			if err := info.Closers[i](shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error closing resource")
			}
		}
		// d. 最后刷新缓冲的 trace
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		log.Error().Err(err).Msgf("Service %s stopped with error.", info.ServiceName)
		return err
	}
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return nil
}

// GetOutboundIP 返回本机访问外网时使用的 IP，用于服务注册
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
